package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log emits one JSON line per event to stdout. Every component in the
// service reports lifecycle and failure events through this single func.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}
