package tagging

import "slices"

// Interval is one completed scenario occurrence.
type Interval struct {
	ID          int64        `json:"id"`
	Scenario    ScenarioType `json:"scenario"`
	Start       int64        `json:"start"`
	End         int64        `json:"end"`
	WindowToken string       `json:"window_token,omitempty"`
	LayerID     int          `json:"layer_id,omitempty"`
	TaskID      int          `json:"task_id,omitempty"`
}

// Contains reports whether ts lies within the interval, bounds included.
func (iv Interval) Contains(ts int64) bool {
	return ts >= iv.Start && ts <= iv.End
}

// Pairs matches start and end tags by id. Completed occurrences are returned
// ordered by start timestamp, then id; tags without a partner are returned
// separately in their input order.
func Pairs(tags []Tag) ([]Interval, []Tag) {
	starts := make(map[int64]Tag)
	ends := make(map[int64]Tag)
	for _, t := range tags {
		if t.IsStart {
			starts[t.ID] = t
		} else {
			ends[t.ID] = t
		}
	}

	var intervals []Interval
	var unmatched []Tag
	for _, t := range tags {
		if !t.IsStart {
			if _, ok := starts[t.ID]; !ok {
				unmatched = append(unmatched, t)
			}
			continue
		}
		end, ok := ends[t.ID]
		if !ok {
			unmatched = append(unmatched, t)
			continue
		}
		intervals = append(intervals, Interval{
			ID:          t.ID,
			Scenario:    t.Scenario,
			Start:       t.Timestamp,
			End:         end.Timestamp,
			WindowToken: t.WindowToken,
			LayerID:     t.LayerID,
			TaskID:      t.TaskID,
		})
	}

	slices.SortFunc(intervals, func(a, b Interval) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return intervals, unmatched
}
