package rules

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"strconv"
)

// FindingID derives a finding's identity from its rule and evidence. Equal
// evidence always yields the same id, so downstream stores can upsert.
// The hash is FNV-1a 32-bit and is not a security boundary.
func FindingID(ruleID string, evidence any) string {
	h := fnv.New32a()
	h.Write(canonicalEvidence(evidence))
	return ruleID + ":" + strconv.FormatUint(uint64(h.Sum32()), 16)
}

var emptyObject = []byte("{}")

// canonicalEvidence renders evidence as JSON with object keys sorted at every
// depth. Typed payloads are first reduced to generic values so struct field
// order and map iteration order cannot leak into the result.
func canonicalEvidence(evidence any) []byte {
	if evidence == nil {
		return emptyObject
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return emptyObject
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil || generic == nil {
		return emptyObject
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return emptyObject
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
