package cmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/ioc"
)

const workerLoopName = "worker"

var (
	errEmptyDSN                = errors.New("repository dsn is empty")
	errUnsupportedConfigFormat = errors.New("unsupported config file format")
)

// greeterPluginPath is where the demo plugin is registered. The static
// loader stands in for a shared object on disk.
const greeterPluginPath = "{appDir}/plugins/greeter.so"

// Repository is a closable resource destroyed last.
type Repository struct {
	DSN    string
	closed bool
}

// NewRepository opens a repository for dsn.
func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errEmptyDSN
	}
	return &Repository{DSN: dsn}, nil
}

// Close marks the repository closed.
func (r *Repository) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether Close ran.
func (r *Repository) Closed() bool {
	return r.closed
}

// Service references the worker, which references it back.
type Service struct {
	Name       string
	Repository *Repository
	Worker     *Worker
	Greeter    *Greeter
}

// NewService creates a named service.
func NewService(name string) *Service {
	return &Service{Name: name}
}

// Describe summarizes the wiring.
func (s *Service) Describe() string {
	loop := "<none>"
	if s.Worker != nil && s.Worker.Loop() != nil {
		loop = s.Worker.Loop().Name()
	}
	greeting := ""
	if s.Greeter != nil {
		greeting = s.Greeter.Greeting
	}
	return fmt.Sprintf("service %s: repository=%s worker.loop=%s worker.retries=%d greeting=%q",
		s.Name, s.Repository.DSN, loop, s.Worker.Retries, greeting)
}

// Worker lives on the worker event loop.
type Worker struct {
	Service *Service
	Retries int `bean:"retries"`

	mu   sync.Mutex
	loop ioc.ExecutionContext
}

// NewWorker creates an unbound worker.
func NewWorker() *Worker {
	return &Worker{}
}

// SetExecutionContext records the loop the worker was moved to.
func (w *Worker) SetExecutionContext(ec ioc.ExecutionContext) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loop = ec
}

// Loop returns the worker's execution context.
func (w *Worker) Loop() ioc.ExecutionContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loop
}

// Greeter is provided by a plugin.
type Greeter struct {
	Greeting string
}

// Report is a per-request snapshot holding a copy of the repository settings.
type Report struct {
	DSN string
}

// NewReport builds a report from a repository value.
func NewReport(repo Repository) Report {
	return Report{DSN: repo.DSN}
}

func registerDemoTypes(types *ioc.TypeRegistry) error {
	return errors.Join(
		types.Register("Repository", NewRepository, "dsn"),
		types.Register("Service", NewService, "name"),
		types.Register("Worker", NewWorker),
		types.Register("Report", NewReport),
		types.RegisterInterface("ExecutionContextAware", (*ioc.Affine)(nil)),
	)
}

func registerDemoPlugins(loader *ioc.StaticPluginLoader) {
	loader.Register(ioc.ExpandPath(greeterPluginPath), func() (any, error) {
		return &Greeter{Greeting: "hello from plugin"}, nil
	})
}

// demoDefinitions lists the service before its dependencies to show that
// registration order does not matter.
func demoDefinitions(dsn string) ioc.StaticSource {
	return ioc.StaticSource{
		{
			Name:            "service",
			TypeName:        "Service",
			ConstructorArgs: []ioc.ConstructorArg{ioc.NamedArg("name", "demo")},
			Properties: map[string]any{
				"repository": ioc.Ref("repository"),
				"worker":     ioc.Ref("worker"),
				"greeter":    ioc.Ref("greeter"),
			},
			Component: "service",
		},
		{
			Name:           "worker",
			TypeName:       "Worker",
			Properties:     map[string]any{"service": ioc.Ref("service"), "retries": "3"},
			ThreadAffinity: workerLoopName,
			Component:      "worker",
		},
		{
			Name:            "repository",
			TypeName:        "Repository",
			ConstructorArgs: []ioc.ConstructorArg{ioc.Arg(0, dsn)},
			Component:       "repository",
		},
		{
			Name:       "greeter",
			PluginPath: greeterPluginPath,
		},
		{
			Name:            "report",
			TypeName:        "Report",
			Scope:           ioc.ScopePrototype,
			ConstructorArgs: []ioc.ConstructorArg{ioc.Arg(0, ioc.ValueRef("repository"))},
		},
	}
}
