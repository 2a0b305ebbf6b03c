// pkg/vault/response.go

package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
)

// SecretMetadata is the version information a KV v2 read returns.
type SecretMetadata struct {
	CreatedTime  string `json:"created_time" yaml:"created_time"`
	DeletionTime string `json:"deletion_time" yaml:"deletion_time,omitempty"`
	Destroyed    bool   `json:"destroyed" yaml:"destroyed"`
	Version      int    `json:"version" yaml:"version"`
}

// SecretRecord is one secret as read from Vault.
type SecretRecord struct {
	Path     string          `json:"path" yaml:"path"`
	Data     map[string]any  `json:"data" yaml:"data"`
	Metadata *SecretMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// envelope is a decoded read response for one engine version.
type envelope interface {
	unwrap() (map[string]any, *SecretMetadata, error)
}

type v1Envelope struct {
	Data map[string]any `json:"data"`
}

func (e *v1Envelope) unwrap() (map[string]any, *SecretMetadata, error) {
	if e.Data == nil {
		return nil, nil, fmt.Errorf("response has no data object")
	}
	return e.Data, nil, nil
}

type v2Envelope struct {
	Data *struct {
		Data     map[string]any  `json:"data"`
		Metadata *SecretMetadata `json:"metadata"`
	} `json:"data"`
}

func (e *v2Envelope) unwrap() (map[string]any, *SecretMetadata, error) {
	if e.Data == nil {
		return nil, nil, fmt.Errorf("response has no data object")
	}
	// A deleted version has null data but still carries metadata.
	data := e.Data.Data
	if data == nil {
		data = map[string]any{}
	}
	return data, e.Data.Metadata, nil
}

func newEnvelope(version kvpath.EngineVersion) envelope {
	if version == kvpath.V2 {
		return &v2Envelope{}
	}
	return &v1Envelope{}
}

func decodeEnvelope(version kvpath.EngineVersion, body []byte) (map[string]any, *SecretMetadata, error) {
	env := newEnvelope(version)
	if err := json.Unmarshal(body, env); err != nil {
		return nil, nil, err
	}
	return env.unwrap()
}

// wrapPayload shapes a write body for the engine version.
func wrapPayload(version kvpath.EngineVersion, payload map[string]any) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	if version == kvpath.V2 {
		return map[string]any{"data": payload}
	}
	return payload
}

// apiMessages is the warnings/errors block Vault attaches to responses.
type apiMessages struct {
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// serverMessage returns the server's warnings joined by ", ", falling back
// to its errors. Empty when the body has neither.
func serverMessage(body []byte) string {
	var m apiMessages
	if len(body) == 0 || json.Unmarshal(body, &m) != nil {
		return ""
	}
	if msg := joinNonEmpty(m.Warnings); msg != "" {
		return msg
	}
	return joinNonEmpty(m.Errors)
}

func joinNonEmpty(items []string) string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

type listResponse struct {
	Data *struct {
		Keys []string `json:"keys"`
	} `json:"data"`
}
