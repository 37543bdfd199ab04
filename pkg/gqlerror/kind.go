package gqlerror

import "fmt"

// Kind is the terminal classification of a failed request.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindNetwork covers timeouts and failed connections.
	KindNetwork
	KindAuthentication
	// KindValidation is a delivered response carrying GraphQL errors.
	KindValidation
	KindServer
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindNetwork:        "network",
	KindAuthentication: "authentication",
	KindValidation:     "validation",
	KindServer:         "server",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Retryable reports whether the executor may retry a failure of this kind.
func (k Kind) Retryable() bool {
	return k == KindNetwork
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// Messages holds the user facing message of each kind.
type Messages struct {
	Network        string `yaml:"network"`
	Authentication string `yaml:"authentication"`
	Validation     string `yaml:"validation"`
	Server         string `yaml:"server"`
	Unknown        string `yaml:"unknown"`
}

var DefaultMessages = Messages{
	Network:        "Network problem. Please check your connection and try again.",
	Authentication: "Your session has expired. Please sign in again.",
	Validation:     "The request could not be completed.",
	Server:         "Something went wrong on our side. Please try again later.",
	Unknown:        "Something went wrong. Please try again.",
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages
	if len(m.Network) > 0 {
		d.Network = m.Network
	}
	if len(m.Authentication) > 0 {
		d.Authentication = m.Authentication
	}
	if len(m.Validation) > 0 {
		d.Validation = m.Validation
	}
	if len(m.Server) > 0 {
		d.Server = m.Server
	}
	if len(m.Unknown) > 0 {
		d.Unknown = m.Unknown
	}
	return d
}

func (m Messages) For(k Kind) string {
	switch k {
	case KindNetwork:
		return m.Network
	case KindAuthentication:
		return m.Authentication
	case KindValidation:
		return m.Validation
	case KindServer:
		return m.Server
	default:
		return m.Unknown
	}
}
