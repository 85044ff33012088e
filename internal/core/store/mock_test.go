package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/uidn/internal/driver"
)

type executed struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver answers each query from Results and records what was run.
// Write transactions are recorded only when every statement succeeds.
type MockDriver struct {
	Executed []executed
	Results  map[string]neo4j.EagerResult
	Err      error
	// FailOn makes a write transaction abort at this query.
	FailOn string
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executed{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.Results[query], nil
}

func (m *MockDriver) ExecuteWrite(ctx context.Context, statements []driver.Statement) error {
	if m.Err != nil {
		return m.Err
	}
	var tx []executed
	for _, st := range statements {
		if st.Query == m.FailOn {
			return fmt.Errorf("transaction rolled back")
		}
		tx = append(tx, executed{Query: st.Query, Params: st.Params})
	}
	m.Executed = append(m.Executed, tx...)
	return nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func record(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}
