//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/pkg/playground"
	"github.com/speakeasy-api/shapeflow/pkg/pyfmt"
)

func options() shapeflow.Options {
	opts := shapeflow.DefaultOptions()
	opts.LogLevel = ""
	return opts
}

// FormatFunction prints a function description as source
func FormatFunction(src string) (string, error) {
	fn, err := playground.ParseSource(src)
	if err != nil {
		return "", err
	}
	return pyfmt.Format(fn, pyfmt.DefaultConfig())
}

// promisify wraps a Go function to return a JavaScript Promise
func promisify(fn func(args []js.Value) (string, error)) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) any {
		handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) any {
			resolve := promiseArgs[0]
			reject := promiseArgs[1]

			go func() {
				result, err := fn(args)
				if err != nil {
					errorConstructor := js.Global().Get("Error")
					reject.Invoke(errorConstructor.New(err.Error()))
					return
				}
				resolve.Invoke(result)
			}()

			// The handler of a Promise doesn't return any value
			return nil
		})

		promiseConstructor := js.Global().Get("Promise")
		return promiseConstructor.New(handler)
	})
}

func main() {
	js.Global().Set("OptimizeFunction", promisify(func(args []js.Value) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("OptimizeFunction: expected 2 args (source, format), got %v", len(args))
		}
		format, err := playground.ParseFormat(args[1].String())
		if err != nil {
			return "", err
		}
		return playground.Optimize(context.Background(), args[0].String(), format, options(), false)
	}))

	js.Global().Set("OptimizeDocument", promisify(func(args []js.Value) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("OptimizeDocument: expected 1 arg (oasYAML), got %v", len(args))
		}
		return playground.OptimizeDocument(context.Background(), args[0].String(), options())
	}))

	js.Global().Set("FormatFunction", promisify(func(args []js.Value) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("FormatFunction: expected 1 arg (source), got %v", len(args))
		}
		return FormatFunction(args[0].String())
	}))

	js.Global().Set("OptimizePipeline", promisify(func(args []js.Value) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("OptimizePipeline: expected 2 args (source, strict), got %v", len(args))
		}
		result, err := playground.OptimizePipeline(context.Background(), args[0].String(), options(), args[1].Bool())
		if err != nil {
			return "", err
		}
		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("failed to marshal pipeline result: %w", err)
		}
		return string(jsonBytes), nil
	}))

	// Keep the program running
	<-make(chan bool)
}
