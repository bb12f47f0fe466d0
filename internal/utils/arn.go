package utils

import "strings"

// ShortName extracts the last segment after "/" from an ARN or path.
// Returns the input unchanged if no "/" is found.
func ShortName(arn string) string {
	if parts := strings.Split(arn, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return arn
}

// SecondToLast extracts the second-to-last "/" segment from an ARN.
// Useful for target group ARNs where the name sits before the final segment.
// Returns the input unchanged if fewer than 2 segments exist.
func SecondToLast(arn string) string {
	parts := strings.Split(arn, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return arn
}

// BuildARN joins the ARN fields with ":". An empty partition means "aws".
func BuildARN(partition, service, region, account, resource string) string {
	if partition == "" {
		partition = "aws"
	}
	return strings.Join([]string{"arn", partition, service, region, account, resource}, ":")
}

// ARNService returns the service field of an ARN, or "" if s is not an ARN.
func ARNService(s string) string {
	parts := strings.SplitN(s, ":", 6)
	if len(parts) < 6 || parts[0] != "arn" {
		return ""
	}
	return parts[2]
}
