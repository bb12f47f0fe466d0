package utils

import "testing"

func TestShortName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"arn:aws:elasticloadbalancing:us-east-1:123456:listener/app/my-alb/abc123/def456", "def456"},
		{"arn:aws:elasticloadbalancing:us-east-1:123456:loadbalancer/app/my-alb/abc123", "abc123"},
		{"plain-string", "plain-string"},
		{"single/segment", "segment"},
		{"", ""},
	}

	for _, tt := range tests {
		got := ShortName(tt.input)
		if got != tt.want {
			t.Errorf("ShortName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSecondToLast(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"arn:aws:elasticloadbalancing:us-east-1:123456:targetgroup/my-tg/abc123", "my-tg"},
		{"a/b/c", "b"},
		{"a/b", "a"},
		{"no-slash", "no-slash"},
		{"", ""},
	}

	for _, tt := range tests {
		got := SecondToLast(tt.input)
		if got != tt.want {
			t.Errorf("SecondToLast(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildARN(t *testing.T) {
	tests := []struct {
		partition, service, region, account, resource string
		want                                          string
	}{
		{"", "elasticloadbalancing", "us-east-1", "123456789012", "targetgroup/web/0a1b", "arn:aws:elasticloadbalancing:us-east-1:123456789012:targetgroup/web/0a1b"},
		{"aws-cn", "ec2", "cn-north-1", "1", "security-group/sg-1", "arn:aws-cn:ec2:cn-north-1:1:security-group/sg-1"},
	}

	for _, tt := range tests {
		got := BuildARN(tt.partition, tt.service, tt.region, tt.account, tt.resource)
		if got != tt.want {
			t.Errorf("BuildARN() = %q, want %q", got, tt.want)
		}
	}
}

func TestARNService(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"arn:aws:acm:us-east-1:123456:certificate/abc-123", "acm"},
		{"arn:aws:iam::123456:server-certificate/web", "iam"},
		{"arn:cert/A", ""},
		{"not-an-arn", ""},
	}

	for _, tt := range tests {
		got := ARNService(tt.input)
		if got != tt.want {
			t.Errorf("ARNService(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
