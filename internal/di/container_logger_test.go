package di_test

import (
	"context"
	"maps"
	"sync"
	"testing"

	"github.com/goliatone/go-publisher/internal/di"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/internal/runtimeconfig"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

func TestContainerLogsThroughInjectedProvider(t *testing.T) {
	journal := &logJournal{}
	container := newContainer(t, runtimeconfig.DefaultConfig(), di.WithLoggerProvider(journal))

	configured := journal.first("mediacache.configured")
	if configured == nil {
		t.Fatalf("expected mediacache.configured entry, got %v", journal.messages())
	}
	if configured.fields["module"] != "publisher.mediacache" {
		t.Fatalf("expected module publisher.mediacache, got %v", configured.fields["module"])
	}

	snap, err := container.Orchestrator().Process(context.Background(), scenarioRequest(t))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	started := journal.first("tasks.process.started")
	if started == nil {
		t.Fatal("expected tasks.process.started entry")
	}
	if started.fields["module"] != "publisher.tasks" || started.fields["task_id"] != snap.ID || started.fields["phase"] != "process" {
		t.Fatalf("unexpected task fields %v", started.fields)
	}
}

func TestFailedTaskLogCarriesErrorKind(t *testing.T) {
	journal := &logJournal{}
	container := newContainer(t, runtimeconfig.DefaultConfig(), di.WithLoggerProvider(journal))

	req := scenarioRequest(t)
	req.Markdown = []byte("---\nauthor: A\ncover_image_path: cover.jpg\n---\nbody")
	snap, err := container.Orchestrator().Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected metadata failure")
	}

	failed := journal.first("tasks.failed")
	if failed == nil {
		t.Fatalf("expected tasks.failed entry, got %v", journal.messages())
	}
	if failed.level != "error" || failed.fields["error_kind"] != "metadata" || failed.fields["task_id"] != snap.ID {
		t.Fatalf("unexpected failure entry %+v", failed)
	}
}

// logJournal is a LoggerProvider that keeps every entry in memory.
type logJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

type journalEntry struct {
	level  string
	msg    string
	fields map[string]any
}

func (j *logJournal) GetLogger(name string) interfaces.Logger {
	return journalLogger{journal: j, fields: map[string]any{"logger": name}}
}

func (j *logJournal) append(entry journalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *logJournal) first(msg string) *journalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, entry := range j.entries {
		if entry.msg == msg {
			return &entry
		}
	}
	return nil
}

func (j *logJournal) messages() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.entries))
	for _, entry := range j.entries {
		out = append(out, entry.msg)
	}
	return out
}

type journalLogger struct {
	journal *logJournal
	fields  map[string]any
}

func (l journalLogger) Trace(msg string, args ...any) { l.write("trace", msg, args) }
func (l journalLogger) Debug(msg string, args ...any) { l.write("debug", msg, args) }
func (l journalLogger) Info(msg string, args ...any)  { l.write("info", msg, args) }
func (l journalLogger) Warn(msg string, args ...any)  { l.write("warn", msg, args) }
func (l journalLogger) Error(msg string, args ...any) { l.write("error", msg, args) }
func (l journalLogger) Fatal(msg string, args ...any) { l.write("fatal", msg, args) }

func (l journalLogger) WithFields(fields map[string]any) interfaces.Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return journalLogger{journal: l.journal, fields: merged}
}

// WithContext lifts task fields from ctx, as the real providers do.
func (l journalLogger) WithContext(ctx context.Context) interfaces.Logger {
	return l.WithFields(logging.ContextFields(ctx))
}

func (l journalLogger) write(level, msg string, args []any) {
	fields := maps.Clone(l.fields)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok && key != "" {
			fields[key] = args[i+1]
		}
	}
	l.journal.append(journalEntry{level: level, msg: msg, fields: fields})
}
