package accumulator

import "ibkr-reporter/internal/types"

// Snapshot is an immutable copy of the topic tables at one point in time.
type Snapshot struct {
	AccountSummary []types.AccountSummary
	PnL            []types.PnL
	Positions      []types.Position
}

// Len returns the number of rows of a topic.
func (s Snapshot) Len(topic types.Topic) int {
	switch topic {
	case types.TopicAccountSummary:
		return len(s.AccountSummary)
	case types.TopicPnL:
		return len(s.PnL)
	case types.TopicPosition:
		return len(s.Positions)
	}
	return 0
}

// Table renders one topic as a labelled table. A topic without rows still
// carries its column names.
func (s Snapshot) Table(topic types.Topic) types.Table {
	t := types.Table{
		Topic:   topic,
		Columns: types.Columns(topic),
		Rows:    [][]string{},
	}
	switch topic {
	case types.TopicAccountSummary:
		for _, r := range s.AccountSummary {
			t.Rows = append(t.Rows, r.Cells())
		}
	case types.TopicPnL:
		for _, r := range s.PnL {
			t.Rows = append(t.Rows, r.Cells())
		}
	case types.TopicPosition:
		for _, r := range s.Positions {
			t.Rows = append(t.Rows, r.Cells())
		}
	}
	return t
}
