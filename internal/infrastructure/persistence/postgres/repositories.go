package postgres

import (
	"github.com/imperium-ai/imperium/internal/domain/council"
	"github.com/imperium-ai/imperium/internal/domain/gate"
	"github.com/imperium-ai/imperium/internal/domain/journal"
	"github.com/imperium-ai/imperium/internal/domain/progression"
	"github.com/imperium-ai/imperium/internal/domain/task"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

var (
	_ progression.Repository   = (*ProgressionRepository)(nil)
	_ gate.Repository          = (*GateRepository)(nil)
	_ trial.ProgressRepository = (*TrialProgressRepository)(nil)
	_ task.Repository          = (*TaskRepository)(nil)
	_ journal.Repository       = (*JournalRepository)(nil)
	_ council.Repository       = (*CouncilRepository)(nil)
)

// Repositories bundles every repository over one connection.
type Repositories struct {
	Progression *ProgressionRepository
	Gates       *GateRepository
	Trials      *TrialProgressRepository
	Tasks       *TaskRepository
	Journal     *JournalRepository
	Council     *CouncilRepository
}

// NewRepositories wires all repositories to conn with its query timeout.
func NewRepositories(conn *Connection, engine *progression.Engine) *Repositories {
	timeout := conn.QueryTimeout()

	p := NewProgressionRepository(conn, engine)
	p.timeout = timeout
	g := NewGateRepository(conn)
	g.timeout = timeout
	tr := NewTrialProgressRepository(conn)
	tr.timeout = timeout
	tk := NewTaskRepository(conn)
	tk.timeout = timeout
	j := NewJournalRepository(conn)
	j.timeout = timeout
	c := NewCouncilRepository(conn)
	c.timeout = timeout

	return &Repositories{
		Progression: p,
		Gates:       g,
		Trials:      tr,
		Tasks:       tk,
		Journal:     j,
		Council:     c,
	}
}
