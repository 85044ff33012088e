package driver

const (
	SaveCaseQuery = `
		MERGE (c:Case {case_id: $case_id})
		SET c.updated_at = $updated_at,
			c.node_count = $node_count,
			c.edge_count = $edge_count
		RETURN c.case_id AS case_id
	`

	DeleteCaseEntitiesQuery = `
		MATCH (n:Entity {case_id: $case_id})
		DETACH DELETE n
	`

	DeleteCaseQuery = `
		MATCH (c:Case {case_id: $case_id})
		OPTIONAL MATCH (n:Entity {case_id: $case_id})
		WITH c, c.case_id AS case_id, collect(n) AS entities
		FOREACH (e IN entities | DETACH DELETE e)
		DETACH DELETE c
		RETURN case_id
	`

	SaveFusedNodesQuery = `
		UNWIND $nodes AS node
		MERGE (n:Entity {case_id: $case_id, uidn_id: node.uidn_id})
		SET n.type = node.type,
			n.canonical_value = node.canonical_value,
			n.aliases = node.aliases,
			n.member_entity_ids = node.member_entity_ids,
			n.modality_coverage = node.modality_coverage,
			n.confidence = node.confidence
		RETURN count(n) AS saved
	`

	SaveFusionEdgesQuery = `
		UNWIND $edges AS edge
		MATCH (source:Entity {case_id: $case_id, uidn_id: edge.source_uidn})
		MATCH (target:Entity {case_id: $case_id, uidn_id: edge.target_uidn})
		MERGE (source)-[e:RELATES_TO {relation_type: edge.relation_type}]->(target)
		SET e.case_id = $case_id,
			e.evidence = edge.evidence,
			e.confidence = edge.confidence
		RETURN count(e) AS saved
	`

	GetCaseQuery = `
		MATCH (c:Case {case_id: $case_id})
		RETURN c.case_id AS case_id
	`

	GetCaseNodesQuery = `
		MATCH (n:Entity {case_id: $case_id})
		RETURN n.uidn_id AS uidn_id, n.type AS type, n.canonical_value AS canonical_value,
			n.aliases AS aliases, n.member_entity_ids AS member_entity_ids,
			n.modality_coverage AS modality_coverage, n.confidence AS confidence
		ORDER BY n.uidn_id
	`

	GetCaseEdgesQuery = `
		MATCH (s:Entity {case_id: $case_id})-[e:RELATES_TO]->(t:Entity {case_id: $case_id})
		RETURN s.uidn_id AS source_uidn, t.uidn_id AS target_uidn, e.relation_type AS relation_type,
			e.evidence AS evidence, e.confidence AS confidence
		ORDER BY source_uidn, target_uidn, relation_type
	`

	ListCasesQuery = `
		MATCH (c:Case)
		RETURN c.case_id AS case_id
		ORDER BY c.case_id
	`
)

// IndexQueries are run by BuildIndices. Memgraph rejects duplicates, which is
// harmless.
var IndexQueries = []string{
	"CREATE INDEX ON :Case(case_id);",
	"CREATE INDEX ON :Entity(case_id);",
	"CREATE INDEX ON :Entity(uidn_id);",
}
