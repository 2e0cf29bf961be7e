package types

import "time"

// RunStatus is the overall outcome of an extraction run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// Metadata describes the run that produced a snapshot.
type Metadata struct {
	ToolVersion        string    `json:"toolVersion"`
	RunID              string    `json:"runId"`
	Subdomain          string    `json:"sfmcSubdomain,omitempty"`
	AccountID          string    `json:"sfmcAccountId,omitempty"`
	Started            time.Time `json:"extractionStarted"`
	Completed          time.Time `json:"extractionCompleted"`
	SelectedExtractors []string  `json:"selectedExtractors"`
	Status             RunStatus `json:"status"`
}

// ExtractorStats summarizes one extractor's output for statistics.json.
type ExtractorStats struct {
	Objects      int           `json:"objects"`
	Edges        int           `json:"edges"`
	Errors       int           `json:"errors"`
	PagesFetched int           `json:"pagesFetched"`
	Duration     time.Duration `json:"durationMs"`
}

// GraphStats summarizes the relationship graph.
type GraphStats struct {
	TotalEdges    int                 `json:"totalEdges"`
	DanglingEdges int                 `json:"danglingEdges"`
	Orphans       int                 `json:"orphans"`
	ByKind        map[EdgeKind]int    `json:"byRelationshipType"`
	BySourceType  map[ObjectType]int  `json:"bySourceType"`
	ByTargetType  map[ObjectType]int  `json:"byTargetType"`
	MostConnected []ConnectedObject   `json:"mostConnected,omitempty"`
}

// ConnectedObject is an entry in the most-connected ranking.
type ConnectedObject struct {
	ID    string     `json:"id"`
	Type  ObjectType `json:"type"`
	Name  string     `json:"name,omitempty"`
	Edges int        `json:"edges"`
}

// Statistics is the aggregate written to statistics.json.
type Statistics struct {
	TotalObjects int                       `json:"totalObjects"`
	TotalErrors  int                       `json:"totalErrors"`
	ByExtractor  map[string]ExtractorStats `json:"byExtractor"`
	Graph        GraphStats                `json:"graph"`
	RateLimits   map[string]any            `json:"rateLimits,omitempty"`
	Caches       map[string]any            `json:"caches,omitempty"`
}

// Manifest is the snapshot entry point written to manifest.json. Files maps
// a logical name (extractor or "relationships"/"orphans") to a path relative
// to the snapshot directory.
type Manifest struct {
	Metadata   Metadata          `json:"metadata"`
	Statistics Statistics        `json:"statistics"`
	Files      map[string]string `json:"files"`
	Errors     []*ExtractError   `json:"errors,omitempty"`
}
