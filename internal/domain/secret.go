package domain

import (
	"encoding/json"
	"time"
)

// SecretType enumerates the secret kinds from spec.md §3.
type SecretType string

const (
	SecretGeneric           SecretType = "generic"
	SecretTLSCertificate    SecretType = "tls_certificate"
	SecretValidationContext SecretType = "validation_context"
	SecretSessionTicketKeys SecretType = "session_ticket_keys"
)

func (t SecretType) Valid() bool {
	switch t {
	case SecretGeneric, SecretTLSCertificate, SecretValidationContext, SecretSessionTicketKeys:
		return true
	}
	return false
}

// SecretBackend identifies where reference-based secret material lives.
type SecretBackend string

const (
	BackendInline SecretBackend = "inline"
	BackendVault  SecretBackend = "vault"
	BackendAWSARN SecretBackend = "aws_arn"
	BackendGCPRes SecretBackend = "gcp_resource"
)

// SecretMaterial is the typed configuration payload for a Secret: either
// an encrypted inline value or a reference to an external backend plus
// an optional version specifier (spec.md §3).
type SecretMaterial struct {
	Backend       SecretBackend `json:"backend"`
	InlineCipher  string        `json:"inlineCipher,omitempty"`
	ReferencePath string        `json:"referencePath,omitempty"`
	Version       string        `json:"version,omitempty"`
}

func DecodeSecretMaterial(raw json.RawMessage) (*SecretMaterial, error) {
	var m SecretMaterial
	dec := json.NewDecoder(jsonReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, Validation("configuration", "invalid secret material: %v", err)
	}
	return &m, nil
}

// Secret is named TLS/credential material (spec.md §3).
type Secret struct {
	ID            string
	Name          string
	Team          string
	SecretType    SecretType
	Configuration json.RawMessage
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Secret) Validate() error {
	if !ValidName(s.Name) {
		return Validation("name", "secret name %q must match the wire naming rule", s.Name)
	}
	if !s.SecretType.Valid() {
		return Validation("secretType", "unknown secret type %q", s.SecretType)
	}
	mat, err := DecodeSecretMaterial(s.Configuration)
	if err != nil {
		return err
	}
	if mat.Backend != BackendInline && mat.ReferencePath == "" {
		return Validation("configuration.referencePath", "reference-backed secrets require a referencePath")
	}
	if mat.Backend == BackendInline && mat.InlineCipher == "" {
		return Validation("configuration.inlineCipher", "inline secrets require inlineCipher")
	}
	return nil
}
