// Package demo provides sample tools for the gambit commands.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spetersoncode/gambit/tool"
)

// Tools returns the demo tool set.
func Tools() []tool.Registration {
	return []tool.Registration{
		tool.Func("get_weather", "Get the current weather for a location", weather),
		tool.Func("get_time", "Get the current time", currentTime),
		tool.Func("echo", "Echo back the input text", echo),
		tool.Func("calculate", "Perform basic arithmetic on two numbers", calculate),
	}
}

// Registry returns a new registry holding the demo tools.
func Registry() *tool.Registry {
	return tool.NewRegistry().Add(Tools()...)
}

// WeatherArgs are the arguments for get_weather.
type WeatherArgs struct {
	Location string `json:"location" desc:"City name, e.g. Paris" required:"true"`
}

func weather(ctx context.Context, args WeatherArgs) (string, error) {
	return fmt.Sprintf(`{"location": %q, "temperature": 22, "conditions": "Sunny", "unit": "celsius"}`, args.Location), nil
}

// TimeArgs are the arguments for get_time.
type TimeArgs struct {
	Format string `json:"format" desc:"Time format: rfc3339, unix, or human" enum:"rfc3339,unix,human"`
}

var now = time.Now

func currentTime(ctx context.Context, args TimeArgs) (string, error) {
	t := now().UTC()
	switch strings.ToLower(args.Format) {
	case "rfc3339":
		return t.Format(time.RFC3339), nil
	case "unix":
		return fmt.Sprintf("%d", t.Unix()), nil
	default:
		return t.Format("Monday, January 2, 2006 at 3:04 PM MST"), nil
	}
}

// EchoArgs are the arguments for echo.
type EchoArgs struct {
	Text string `json:"text" desc:"The text to echo back" required:"true"`
}

func echo(ctx context.Context, args EchoArgs) (string, error) {
	return args.Text, nil
}

// CalculateArgs are the arguments for calculate.
type CalculateArgs struct {
	Operation string  `json:"operation" desc:"The operation to perform" enum:"add,subtract,multiply,divide" required:"true"`
	A         float64 `json:"a" desc:"First number" required:"true"`
	B         float64 `json:"b" desc:"Second number" required:"true"`
}

func calculate(ctx context.Context, args CalculateArgs) (string, error) {
	var result float64
	switch args.Operation {
	case "add":
		result = args.A + args.B
	case "subtract":
		result = args.A - args.B
	case "multiply":
		result = args.A * args.B
	case "divide":
		if args.B == 0 {
			return "", fmt.Errorf("cannot divide by zero")
		}
		result = args.A / args.B
	default:
		return "", fmt.Errorf("unknown operation: %s", args.Operation)
	}
	return fmt.Sprintf("%.6g", result), nil
}
