package pipeline

// State of a pipeline run
type State int

// run states, in the order a run passes them
const (
	StateIdle State = iota
	StateResetting
	StateIngestingFeed
	StateProcessingArticle
	StateExporting
	StateDone
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateResetting:         "resetting",
	StateIngestingFeed:     "ingesting_feed",
	StateProcessingArticle: "processing_article",
	StateExporting:         "exporting",
	StateDone:              "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
