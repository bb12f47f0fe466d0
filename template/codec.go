package template

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format selects a template encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json". Empty means YAML.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

type resourceHeader struct {
	LogicalID string   `yaml:"logicalId" json:"logicalId"`
	Kind      Kind     `yaml:"kind" json:"kind"`
	Scope     string   `yaml:"scope" json:"scope"`
	Path      string   `yaml:"path" json:"path"`
	DependsOn []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}

type encodedResource struct {
	resourceHeader `yaml:",inline"`
	Properties     Properties `yaml:"properties" json:"properties"`
}

func (r Resource) header() resourceHeader {
	return resourceHeader{
		LogicalID: r.LogicalID,
		Kind:      r.Kind,
		Scope:     r.Scope,
		Path:      r.Path,
		DependsOn: r.DependsOn,
	}
}

func (r *Resource) setHeader(h resourceHeader) {
	r.LogicalID = h.LogicalID
	r.Kind = h.Kind
	r.Scope = h.Scope
	r.Path = h.Path
	r.DependsOn = h.DependsOn
}

func (r Resource) MarshalYAML() (interface{}, error) {
	return encodedResource{resourceHeader: r.header(), Properties: r.Properties}, nil
}

func (r *Resource) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		resourceHeader `yaml:",inline"`
		Properties     yaml.Node `yaml:"properties"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	props, err := decodeProperties(raw.Kind, raw.Properties.Decode)
	if err != nil {
		return fmt.Errorf("resource %s: %w", raw.LogicalID, err)
	}
	r.setHeader(raw.resourceHeader)
	r.Properties = props
	return nil
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodedResource{resourceHeader: r.header(), Properties: r.Properties})
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw struct {
		resourceHeader
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	props, err := decodeProperties(raw.Kind, func(v any) error {
		return json.Unmarshal(raw.Properties, v)
	})
	if err != nil {
		return fmt.Errorf("resource %s: %w", raw.LogicalID, err)
	}
	r.setHeader(raw.resourceHeader)
	r.Properties = props
	return nil
}

func decodeProperties(k Kind, decode func(any) error) (Properties, error) {
	switch k {
	case KindLoadBalancer:
		return decodeAs[LoadBalancerProperties](decode)
	case KindListener:
		return decodeAs[ListenerProperties](decode)
	case KindListenerCertificate:
		return decodeAs[ListenerCertificateProperties](decode)
	case KindListenerRule:
		return decodeAs[ListenerRuleProperties](decode)
	case KindTargetGroup:
		return decodeAs[TargetGroupProperties](decode)
	case KindTarget:
		return decodeAs[TargetProperties](decode)
	case KindSecurityGroup:
		return decodeAs[SecurityGroupProperties](decode)
	case KindSecurityGroupIngress:
		return decodeAs[SecurityGroupIngressProperties](decode)
	case KindExternal:
		return decodeAs[ExternalProperties](decode)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", k)
	}
}

func decodeAs[T Properties](decode func(any) error) (Properties, error) {
	var p T
	if err := decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal encodes t in the given format.
func Marshal(t *Template, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding template: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return nil, fmt.Errorf("encoding template: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding template: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
}

// Unmarshal parses a template previously produced by Marshal.
func Unmarshal(data []byte, f Format) (*Template, error) {
	var t Template
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decoding template: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decoding template: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
	return &t, nil
}

// Digest is the hex SHA-256 of the YAML encoding of t.
func Digest(t *Template) (string, error) {
	data, err := Marshal(t, FormatYAML)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
