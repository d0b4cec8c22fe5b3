package domain

import "strings"

// ExperimentList refers to a toolkit experiment file (.expt). The contents are
// owned by the toolkit; only the path travels through the pipeline.
type ExperimentList struct {
	Path string
}

// ReflectionTable refers to a toolkit reflection file (.refl).
type ReflectionTable struct {
	Path string
}

func (e ExperimentList) IsZero() bool {
	return strings.TrimSpace(e.Path) == ""
}

func (e ExperimentList) String() string {
	return e.Path
}

func (r ReflectionTable) IsZero() bool {
	return strings.TrimSpace(r.Path) == ""
}

func (r ReflectionTable) String() string {
	return r.Path
}

// Dataset pairs the experiments and reflections handed from one stage to the next.
type Dataset struct {
	Experiments ExperimentList
	Reflections ReflectionTable
}
