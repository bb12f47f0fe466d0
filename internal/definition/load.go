package definition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidDefinition is returned when a definition fails shape validation.
	ErrInvalidDefinition = errors.New("invalid definition")
	// ErrUnknownReference is returned when a definition names a resource that
	// does not exist.
	ErrUnknownReference = errors.New("unknown reference")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a YAML definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	return &def, nil
}

// Load reads and parses the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	return Parse(data)
}

// Validate checks the shape of def: required fields, enumerations and
// unique ids. Graph rules are checked later, by the commit.
func Validate(def *Definition) error {
	err := validate.Struct(def)
	if err == nil {
		return validateActions(def)
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating definition: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalidDefinition, strings.Join(msgs, "\n  "))
}

func describe(fe validator.FieldError) string {
	path := strings.TrimPrefix(fe.Namespace(), "Definition.")
	switch fe.Tag() {
	case "required", "required_if":
		return path + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value())
	case "unique":
		return fmt.Sprintf("%s has duplicate %s values", path, fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain %q", path, fe.Param())
	default:
		return fmt.Sprintf("%s fails %s=%s", path, fe.Tag(), fe.Param())
	}
}

// validateActions requires every action to set exactly one variant and every
// rule to name exactly one of action and targetGroups.
func validateActions(def *Definition) error {
	var msgs []string
	check := func(path string, a *ActionDef) {
		for ; a != nil; a = a.next() {
			if n := a.variants(); n != 1 {
				msgs = append(msgs, fmt.Sprintf("%s sets %d action variants, want exactly 1", path, n))
				return
			}
			path += ".next"
		}
	}
	for _, s := range def.Scopes {
		for _, lb := range s.LoadBalancers {
			for _, l := range lb.Listeners {
				base := fmt.Sprintf("%s/%s/%s", s.Name, lb.ID, l.ID)
				check(base+".defaultAction", l.DefaultAction)
				for _, r := range l.Rules {
					if (r.Action == nil) == (len(r.TargetGroups) == 0) {
						msgs = append(msgs, fmt.Sprintf("%s/%s needs exactly one of action and targetGroups", base, r.ID))
						continue
					}
					check(base+"/"+r.ID+".action", r.Action)
				}
			}
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalidDefinition, strings.Join(msgs, "\n  "))
}

func (a *ActionDef) variants() int {
	n := 0
	for _, set := range []bool{
		len(a.Forward) > 0,
		a.WeightedForward != nil,
		a.FixedResponse != nil,
		a.Redirect != nil,
		a.AuthenticateOIDC != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (a *ActionDef) next() *ActionDef {
	if a.AuthenticateOIDC == nil {
		return nil
	}
	return a.AuthenticateOIDC.Next
}
