package s3

import "time"

// Location is a parsed s3://bucket/key URI.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// Object is one file written by Publish.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
}

// Published describes an object after a successful PutObject.
type Published struct {
	Location Location
	ETag     string
	Version  string
	Size     int
	At       time.Time
}
