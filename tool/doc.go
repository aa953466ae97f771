// Package tool provides the tool registry used by agents.
//
// A Registry maps unique tool names to a definition (name, description,
// JSON Schema parameters, output descriptor) and a Handler. Registration
// order is preserved so prompt rendering is stable.
//
// # Basic Usage
//
// Define tool arguments as a struct with tags, then register with Func:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" desc:"City name" required:"true"`
//	    Unit     string `json:"unit" desc:"Temperature unit" enum:"celsius,fahrenheit"`
//	}
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("get_weather", "Get current weather",
//	        func(ctx context.Context, args WeatherArgs) (string, error) {
//	            return fmt.Sprintf(`{"temp": 72, "location": %q}`, args.Location), nil
//	        }),
//	)
//
// # Supported Struct Tags
//
//	json:"name"      - Property name
//	desc:"text"      - Description for the model
//	required:"true"  - Mark field as required
//	enum:"a,b,c"     - Allowed values (comma-separated)
//
// # Validation
//
// Validate checks a call before it runs. The tool must exist and its
// arguments must satisfy the tool's JSON Schema, checked with
// github.com/google/jsonschema-go. Failures are *ValidationError, naming the
// offending argument where possible, or *ErrToolNotFound.
package tool
