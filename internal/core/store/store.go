// Package store persists fused case graphs through a Cypher graph driver.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/driver"
)

var ErrCaseNotFound = errors.New("case not found")

type Store struct {
	Driver driver.GraphDriver
}

func New(d driver.GraphDriver) *Store {
	return &Store{Driver: d}
}

func (s *Store) BuildIndices(ctx context.Context) error {
	return s.Driver.BuildIndices(ctx)
}

// SaveGraph replaces whatever was stored for the case with g. The clear and
// the writes commit together, so a failed save keeps the previous snapshot.
func (s *Store) SaveGraph(ctx context.Context, g *model.FusionGraph) error {
	if g.CaseID == "" {
		return errors.New("graph has no case id")
	}

	statements := []driver.Statement{{
		Query:  driver.DeleteCaseEntitiesQuery,
		Params: map[string]interface{}{"case_id": g.CaseID},
	}}

	if len(g.Nodes) > 0 {
		nodes := make([]interface{}, 0, len(g.Nodes))
		for _, n := range sortedNodes(g) {
			nodes = append(nodes, nodeParams(n))
		}
		statements = append(statements, driver.Statement{
			Query:  driver.SaveFusedNodesQuery,
			Params: map[string]interface{}{"case_id": g.CaseID, "nodes": nodes},
		})
	}

	if len(g.Edges) > 0 {
		edges := make([]interface{}, 0, len(g.Edges))
		for _, e := range g.Edges {
			edges = append(edges, edgeParams(e))
		}
		statements = append(statements, driver.Statement{
			Query:  driver.SaveFusionEdgesQuery,
			Params: map[string]interface{}{"case_id": g.CaseID, "edges": edges},
		})
	}

	statements = append(statements, driver.Statement{
		Query: driver.SaveCaseQuery,
		Params: map[string]interface{}{
			"case_id":    g.CaseID,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
			"node_count": len(g.Nodes),
			"edge_count": len(g.Edges),
		},
	})

	if err := s.Driver.ExecuteWrite(ctx, statements); err != nil {
		return fmt.Errorf("failed to save case %s: %w", g.CaseID, err)
	}
	return nil
}

// LoadGraph reads a stored case back. It returns ErrCaseNotFound for unknown
// cases.
func (s *Store) LoadGraph(ctx context.Context, caseID string) (*model.FusionGraph, error) {
	params := map[string]interface{}{"case_id": caseID}

	res, err := s.Driver.ExecuteQuery(ctx, driver.GetCaseQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to look up case %s: %w", caseID, err)
	}
	if len(res.Records) == 0 {
		return nil, ErrCaseNotFound
	}

	g := model.NewFusionGraph(caseID)

	res, err = s.Driver.ExecuteQuery(ctx, driver.GetCaseNodesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes of case %s: %w", caseID, err)
	}
	for _, rec := range res.Records {
		n, err := recordNode(rec)
		if err != nil {
			return nil, err
		}
		g.Nodes[n.UIDN] = n
	}

	res, err = s.Driver.ExecuteQuery(ctx, driver.GetCaseEdgesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges of case %s: %w", caseID, err)
	}
	for _, rec := range res.Records {
		e, err := recordEdge(rec)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, e)
	}
	return g, nil
}

// DeleteCase removes a stored case. It returns ErrCaseNotFound for unknown
// cases.
func (s *Store) DeleteCase(ctx context.Context, caseID string) error {
	res, err := s.Driver.ExecuteQuery(ctx, driver.DeleteCaseQuery, map[string]interface{}{"case_id": caseID})
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", caseID, err)
	}
	if len(res.Records) == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (s *Store) ListCases(ctx context.Context) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListCasesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _, err := neo4j.GetRecordValue[string](rec, "case_id")
		if err != nil {
			return nil, fmt.Errorf("failed to read case id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
