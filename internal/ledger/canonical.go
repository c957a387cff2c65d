package ledger

import (
	"bytes"
	"encoding/json"
)

// Marshal encodes a payload in canonical form.
func Marshal(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Canonical(raw)
}

// Canonical re-encodes JSON with object keys sorted and numbers kept verbatim.
// Canonical(Canonical(x)) == Canonical(x).
func Canonical(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
