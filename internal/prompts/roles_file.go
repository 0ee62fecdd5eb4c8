package prompts

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// rolesSchema validates a custom roles file: a flat object mapping role
// tags to prompt override text.
const rolesSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": { "type": "string", "minLength": 1 },
	"propertyNames": { "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$" }
}`

// LoadFile merges role overrides from a JSON file into the registry after
// validating it against the schema. A malformed file is rejected whole;
// no partial registration happens.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read roles file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rolesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate roles file: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("invalid roles file %s: %s", path, result.Errors()[0].String())
	}

	var roles map[string]string
	if err := json.Unmarshal(data, &roles); err != nil {
		return fmt.Errorf("failed to parse roles file: %w", err)
	}

	for role, override := range roles {
		r.Register(role, override)
	}
	return nil
}
