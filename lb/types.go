package lb

import (
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

// The graph speaks the ELBv2 API vocabulary directly.
type (
	Protocol         = elbtypes.ProtocolEnum
	TargetType       = elbtypes.TargetTypeEnum
	LoadBalancerType = elbtypes.LoadBalancerTypeEnum
	Scheme           = elbtypes.LoadBalancerSchemeEnum
	IPAddressType    = elbtypes.IpAddressType
)

const (
	ProtocolHTTP   = elbtypes.ProtocolEnumHttp
	ProtocolHTTPS  = elbtypes.ProtocolEnumHttps
	ProtocolTCP    = elbtypes.ProtocolEnumTcp
	ProtocolTLS    = elbtypes.ProtocolEnumTls
	ProtocolUDP    = elbtypes.ProtocolEnumUdp
	ProtocolTCPUDP = elbtypes.ProtocolEnumTcpUdp

	TargetTypeInstance = elbtypes.TargetTypeEnumInstance
	TargetTypeIP       = elbtypes.TargetTypeEnumIp
	TargetTypeLambda   = elbtypes.TargetTypeEnumLambda

	Application = elbtypes.LoadBalancerTypeEnumApplication
	Network     = elbtypes.LoadBalancerTypeEnumNetwork

	SchemeInternetFacing = elbtypes.LoadBalancerSchemeEnumInternetFacing
	SchemeInternal       = elbtypes.LoadBalancerSchemeEnumInternal

	IPv4      = elbtypes.IpAddressTypeIpv4
	DualStack = elbtypes.IpAddressTypeDualstack
)

// Subnet is a subnet ID with its availability zone. The zone may be empty
// when it is not known to the caller.
type Subnet struct {
	ID               string
	AvailabilityZone string
}

// Certificate is a server certificate attached to a TLS-bearing listener.
// ARN is either an ACM certificate ARN or an IAM server certificate ARN.
type Certificate struct {
	ARN string
}

// CertificateFromARN is shorthand for Certificate{ARN: arn}.
func CertificateFromARN(arn string) Certificate {
	return Certificate{ARN: arn}
}

func tlsBearing(p Protocol) bool {
	return p == ProtocolHTTPS || p == ProtocolTLS
}

// protocolsFor lists the listener/target-group protocols a load balancer
// kind accepts.
func protocolsFor(kind LoadBalancerType) []Protocol {
	if kind == Network {
		return []Protocol{ProtocolTCP, ProtocolTLS, ProtocolUDP, ProtocolTCPUDP}
	}
	return []Protocol{ProtocolHTTP, ProtocolHTTPS}
}

func kindPrefix(kind LoadBalancerType) string {
	if kind == Network {
		return "net"
	}
	return "app"
}
