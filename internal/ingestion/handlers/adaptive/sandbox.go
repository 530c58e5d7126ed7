package adaptive

import (
	"context"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"manifold/internal/ingestion/handlers"
)

// sandboxTemplate wraps generator-produced source in a minimal package so
// it can be interpreted in isolation via yaegi, borrowed from the
// sandboxed-execution pattern in _examples/theRebelliousNerd-codenerd.
const sandboxTemplate = `package sandboxed

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

%s
`

// sandboxHandler runs a yaegi-interpreted Extract method behind the
// handlers.Handler interface, bounding what the generated code can touch
// to the stdlib packages threaded into the interpreter.
type sandboxHandler struct {
	i         *interp.Interpreter
	className string
}

func loadInSandbox(code, className string) (handlers.Handler, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("adaptive sandbox: load stdlib: %w", err)
	}

	src := fmt.Sprintf(sandboxTemplate, code)
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("adaptive sandbox: eval generated handler: %w", err)
	}

	return &sandboxHandler{i: i, className: className}, nil
}

// Extract instantiates the generated handler type and calls its Extract
// method. Errors here cause the caller to discard the candidate handler:
// sandbox test against the sample fails, handler discarded, file marked
// unsupported.
func (s *sandboxHandler) Extract(ctx context.Context, path string) (string, error) {
	ctorExpr := fmt.Sprintf("&sandboxed.%s{}", s.className)
	v, err := s.i.Eval(ctorExpr)
	if err != nil {
		return "", fmt.Errorf("adaptive sandbox: construct %s: %w", s.className, err)
	}

	method := v.MethodByName("Extract")
	if !method.IsValid() {
		return "", fmt.Errorf("adaptive sandbox: %s has no Extract method", s.className)
	}

	results := method.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(path)})
	if len(results) != 2 {
		return "", fmt.Errorf("adaptive sandbox: %s.Extract has unexpected signature", s.className)
	}
	text, _ := results[0].Interface().(string)
	if errVal := results[1].Interface(); errVal != nil {
		if err, ok := errVal.(error); ok {
			return text, err
		}
	}
	return text, nil
}
