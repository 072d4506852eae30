package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache memoizes compiled JSON-Schema documents across calls so a
// tool's ParametersSchema is only compiled once, matching the teacher's
// pluginsdk validation cache pattern (compile is the expensive step;
// Validate is cheap and stateless).
var schemaCache sync.Map

// compileSchema compiles and caches a JSON-Schema document, keyed by its
// content hash so two tools sharing an identical schema share one compiled
// entry.
func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(key+".json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateToolParams checks raw call arguments against a tool's declared
// parameters schema (spec §4.1 step 1 "validate against the tool's declared
// parameter schema"). A tool with an empty schema accepts any arguments.
func validateToolParams(schema json.RawMessage, params json.RawMessage) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return NewAgentError(KindConfig, "compile tool parameters schema", err)
	}
	if compiled == nil {
		return nil
	}

	var decoded any
	if len(params) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(params, &decoded); err != nil {
		return NewAgentError(KindValidation, "tool arguments are not valid JSON", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return NewAgentError(KindValidation, fmt.Sprintf("tool arguments failed schema validation: %v", err), err)
	}
	return nil
}
