package ingest

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

var statsTemplate = template.Must(template.New("ingest").Parse(`<!DOCTYPE html>
<html><head><title>ingest {{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<table>
<tr><td>lines</td><td>{{.Stats.Lines}}</td></tr>
<tr><td>samples</td><td>{{.Stats.Samples}}</td></tr>
<tr><td>malformed</td><td>{{.Stats.Malformed}}</td></tr>
<tr><td>last line</td><td>{{if .Stats.LastLine.IsZero}}never{{else}}{{.Stats.LastLine.Format "15:04:05.000"}}{{end}}</td></tr>
{{if .Stats.LastError}}<tr><td>last error</td><td>{{.Stats.LastError}}</td></tr>{{end}}
</table>
<form method="post" action="ingest-command-api"><input name="command" placeholder="command"><button>send</button></form>
</body></html>
`))

// AttachAdminRoutes mounts the ingestion debug pages under /debug/. They
// are reachable only from localhost or over Tailscale.
func (s *LineSource) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Ingest samples", func() any { return s.Stats().Samples })

	debug.HandleFunc("ingest", "force plate ingestion counters", func(w http.ResponseWriter, r *http.Request) {
		data := struct {
			Name  string
			Stats Stats
		}{s.name, s.Stats()}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := statsTemplate.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc("ingest-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write command: %v", err), http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to %s", command, s.name))
	})

	// Server-sent events with the raw lines as they arrive.
	debug.HandleSilentFunc("ingest-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
