package admin

import "context"

// Handler runs one command and returns the reply for the user.
type Handler func(ctx context.Context, req Request) (string, error)

// Command describes a registered command.
type Command struct {
	Name        string
	Usage       string // argument synopsis shown in help, e.g. "<minutes>"
	Description string
	Restricted  bool // requires Authorize
	Mutates     bool // changes settings; recorded in the audit log
	Public      bool // reply is visible to the whole channel
	Run         Handler
}

// Registry maps command names to commands, keeping registration order for
// help output.
type Registry struct {
	commands map[string]Command
	order    []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. Registering an existing name replaces the command and
// keeps its position.
func (r *Registry) Register(cmd Command) {
	if _, ok := r.commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// All returns the commands in registration order.
func (r *Registry) All() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}
