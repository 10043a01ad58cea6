package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	authSchema := compile("auth.schema.json")
	callSchema := compile("call.schema.json")
	resultSchema := compile("result.schema.json")

	validate(helloSchema, `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "address":"0x5B38Da6a701c568545dCfcB03FcB875f56beddC4",
	  "client_name":"bot1"
	}`)

	validate(authSchema, `{
	  "type":"AUTH",
	  "protocol_version":"1.0",
	  "signature":"0x`+repeat("ab", 65)+`"
	}`)

	validate(callSchema, `{
	  "type":"CALL",
	  "protocol_version":"1.0",
	  "req_id":"R1",
	  "method":"mint",
	  "params":{"level_id":1,"guess":"0x`+repeat("0f", 32)+`","quantity":2},
	  "value":"20000000000000000"
	}`)

	validate(resultSchema, `{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "req_id":"R1",
	  "ok":false,
	  "seq":12,
	  "code":"E_NO_SUPPLY",
	  "reason":"sold out"
	}`)
}

func TestCallSchema_RejectsUnknownMethodAndParams(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "call.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cases := []string{
		`{"type":"CALL","protocol_version":"1.0","req_id":"R1","method":"burn","params":{}}`,
		`{"type":"CALL","protocol_version":"1.0","req_id":"R1","method":"mint","params":{"bogus":1}}`,
		`{"type":"CALL","protocol_version":"1.0","req_id":"R1","method":"mint","params":{},"value":"-5"}`,
	}
	for _, raw := range cases {
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected schema rejection for %s", raw)
		}
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
