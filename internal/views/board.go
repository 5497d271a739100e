package views

import "skcrm/core/internal/store"

// Board filters.
const (
	BoardAll       = "all"
	BoardActive    = "active"
	BoardCompleted = "completed"
)

type Column struct {
	Stage    store.ProjectStage
	Projects []store.Project
	Count    int
}

// Board is the project pipeline: one column per stage in stage order, plus
// the projects whose stage no longer exists.
type Board struct {
	Columns    []Column
	Unassigned []store.Project
}

func (b Board) Total() int {
	n := len(b.Unassigned)
	for _, c := range b.Columns {
		n += c.Count
	}
	return n
}

// ProjectBoard groups projects by stage. filter is one of BoardAll,
// BoardActive or BoardCompleted; anything else is BoardAll.
func ProjectBoard(projects []store.Project, stages []store.ProjectStage, filter string) Board {
	board := Board{
		Columns:    make([]Column, len(stages)),
		Unassigned: []store.Project{},
	}
	index := make(map[string]int, len(stages))
	for i, s := range stages {
		board.Columns[i] = Column{Stage: s, Projects: []store.Project{}}
		index[s.ID] = i
	}

	for _, p := range projects {
		switch filter {
		case BoardActive:
			if p.IsCompleted {
				continue
			}
		case BoardCompleted:
			if !p.IsCompleted {
				continue
			}
		}
		i, ok := index[p.StageID]
		if !ok {
			board.Unassigned = append(board.Unassigned, p)
			continue
		}
		board.Columns[i].Projects = append(board.Columns[i].Projects, p)
		board.Columns[i].Count++
	}
	return board
}
