package revision

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/observability"
)

// Generator produces the revisions a [Map] is built from. It is called once,
// on first use of the map.
type Generator func() ([]*Revision, error)

// Option configures a [Map].
type Option func(*Map)

// WithLogger sets the logger that receives repair warnings.
func WithLogger(l *log.Logger) Option {
	return func(m *Map) { m.logger = l }
}

// WithStrict makes a reference to a missing down revision a build error
// instead of a repaired warning.
func WithStrict() Option {
	return func(m *Map) { m.strict = true }
}

// RepairKind classifies a [Repair].
type RepairKind int

const (
	// RepairDuplicate means a later revision replaced an earlier one with
	// the same id.
	RepairDuplicate RepairKind = iota
	// RepairMissingDownRevision means a parent reference named no revision
	// and was dropped.
	RepairMissingDownRevision
)

func (k RepairKind) String() string {
	switch k {
	case RepairDuplicate:
		return "duplicate"
	case RepairMissingDownRevision:
		return "missing-down-revision"
	}
	return "unknown"
}

// Repair records an inconsistency the map corrected while building.
type Repair struct {
	Kind      RepairKind
	Revision  string
	Reference string
	Message   string
}

// Map indexes revisions and answers graph queries over them.
type Map struct {
	gen    Generator
	logger *log.Logger
	strict bool

	mu       sync.RWMutex
	built    bool
	buildErr error

	revs      map[string]*Revision
	order     []string
	labels    map[string]*Revision
	heads     []string
	realHeads []string
	bases     []string
	realBases []string
	repairs   []Repair
}

// NewMap creates a map over the revisions gen produces. A nil generator
// yields an empty map.
func NewMap(gen Generator, opts ...Option) *Map {
	m := &Map{gen: gen, logger: log.New(discard{})}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Build constructs the index if it has not been built yet and returns the
// build error, if any. Later calls return the same error.
func (m *Map) Build() error {
	m.mu.RLock()
	built, err := m.built, m.buildErr
	m.mu.RUnlock()
	if built {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built {
		return m.buildErr
	}
	start := time.Now()
	m.buildErr = m.build()
	m.built = true
	observability.Graph().OnMapBuilt(len(m.order), len(m.heads), time.Since(start), m.buildErr)
	return m.buildErr
}

func (m *Map) build() error {
	m.reset()

	var input []*Revision
	if m.gen != nil {
		var err error
		if input, err = m.gen(); err != nil {
			return fmt.Errorf("load revisions: %w", err)
		}
	}

	for _, in := range input {
		if in == nil {
			continue
		}
		rev := in.clone()
		if err := rev.Validate(); err != nil {
			return err
		}
		if _, exists := m.revs[rev.ID]; exists {
			m.repair(RepairDuplicate, rev.ID, rev.ID,
				fmt.Sprintf("Revision %s is present more than once", rev.ID))
		} else {
			m.order = append(m.order, rev.ID)
		}
		m.revs[rev.ID] = rev
	}

	for _, id := range m.order {
		if err := m.checkDownRevisions(m.revs[id]); err != nil {
			return err
		}
	}
	for _, id := range m.order {
		if err := m.registerLabels(m.revs[id], nil); err != nil {
			return err
		}
	}
	for _, id := range m.order {
		if err := m.resolveDependencies(m.revs[id]); err != nil {
			return err
		}
	}
	for _, id := range m.order {
		m.attach(m.revs[id])
	}
	if err := m.detectCycles(); err != nil {
		return err
	}
	m.normalizeDependencies()
	m.computeHeadsAndBases()
	m.propagateBranches()
	return nil
}

func (m *Map) reset() {
	m.revs = make(map[string]*Revision)
	m.labels = make(map[string]*Revision)
	m.order = nil
	m.heads, m.realHeads, m.bases, m.realBases = nil, nil, nil, nil
	m.repairs = nil
}

func (m *Map) repair(kind RepairKind, rev, ref, msg string) {
	m.repairs = append(m.repairs, Repair{Kind: kind, Revision: rev, Reference: ref, Message: msg})
	m.logger.Warn(msg, "revision", rev, "repair", kind.String())
}

// checkDownRevisions drops parents that name no revision, or fails in
// strict mode.
func (m *Map) checkDownRevisions(rev *Revision) error {
	kept := rev.DownRevisions[:0:0]
	for _, down := range rev.DownRevisions {
		if _, ok := m.revs[down]; ok {
			kept = append(kept, down)
			continue
		}
		msg := fmt.Sprintf("Revision %s referenced from %s is not present", down, rev.ID)
		if m.strict {
			return &RevisionError{Message: msg}
		}
		m.repair(RepairMissingDownRevision, rev.ID, down, msg)
	}
	rev.DownRevisions = kept
	return nil
}

// registerLabels indexes rev's branch labels. Labels owned by prev (the
// revision rev replaces) are released first.
func (m *Map) registerLabels(rev, prev *Revision) error {
	if prev != nil {
		for _, label := range prev.BranchLabels {
			if m.labels[label] == prev {
				delete(m.labels, label)
			}
		}
	}
	for _, label := range rev.BranchLabels {
		if other, ok := m.revs[label]; ok && other.ID != rev.ID {
			return &RevisionError{Message: fmt.Sprintf(
				"Branch name '%s' in revision %s already used by revision %s", label, rev.ID, other.ID)}
		}
		if other, ok := m.labels[label]; ok && other.ID != rev.ID {
			return &RevisionError{Message: fmt.Sprintf(
				"Branch name '%s' in revision %s already used by revision %s", label, rev.ID, other.ID)}
		}
		m.labels[label] = rev
	}
	return nil
}

// resolveDependencies maps every dependency to a revision id.
func (m *Map) resolveDependencies(rev *Revision) error {
	rev.resolvedDeps = nil
	for _, dep := range rev.Dependencies {
		target, ok := m.revs[dep]
		if !ok {
			target, ok = m.labels[dep]
		}
		if !ok {
			return &DependencyResolutionError{Message: fmt.Sprintf(
				"Dependency resolution failed; revision %s depends on %s which is not present", rev.ID, dep)}
		}
		if target.ID == rev.ID {
			return &DependencyLoopDetectedError{Revision: rev.ID}
		}
		if !slices.Contains(rev.resolvedDeps, target.ID) {
			rev.resolvedDeps = append(rev.resolvedDeps, target.ID)
		}
	}
	return nil
}

// attach registers rev as a child of each of its down revisions.
func (m *Map) attach(rev *Revision) {
	for _, down := range rev.allDown() {
		if parent, ok := m.revs[down]; ok {
			parent.addNextrev(rev)
		}
	}
}

// detach undoes attach.
func (m *Map) detach(rev *Revision) {
	for _, down := range rev.allDown() {
		if parent, ok := m.revs[down]; ok {
			parent.removeNextrev(rev.ID)
		}
	}
}

// detectCycles runs a white/gray/black DFS over parent edges and then over
// parent and dependency edges.
func (m *Map) detectCycles() error {
	if cycle := m.findCycle(func(r *Revision) []string { return r.DownRevisions }); cycle != nil {
		return &CycleDetectedError{Revisions: cycle}
	}
	if cycle := m.findCycle((*Revision).allDown); cycle != nil {
		return &DependencyCycleDetectedError{Revisions: cycle}
	}
	return nil
}

func (m *Map) findCycle(edges func(*Revision) []string) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(m.revs))
	var path, cycle []string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		path = append(path, id)
		for _, next := range edges(m.revs[id]) {
			if _, ok := m.revs[next]; !ok {
				continue
			}
			switch color[next] {
			case white:
				dfs(next)
				if cycle != nil {
					return
				}
			case gray:
				start := slices.Index(path, next)
				cycle = slices.Clone(path[start:])
				return
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range m.order {
		if color[id] == white {
			dfs(id)
			if cycle != nil {
				sort.Strings(cycle)
				return cycle
			}
		}
	}
	return nil
}

// normalizeDependencies drops every dependency that is already an ancestor
// of another of the revision's down revisions.
func (m *Map) normalizeDependencies() {
	memo := make(map[string]map[string]bool, len(m.revs))
	for _, id := range m.order {
		m.normalize(m.revs[id], memo)
	}
}

func (m *Map) normalize(rev *Revision, memo map[string]map[string]bool) {
	rev.normalizedDeps = nil
	all := rev.allDown()
	for _, dep := range rev.resolvedDeps {
		implied := false
		for _, other := range all {
			if other != dep && m.ancestorSet(other, memo)[dep] {
				implied = true
				break
			}
		}
		if !implied {
			rev.normalizedDeps = append(rev.normalizedDeps, dep)
		}
	}
}

// ancestorSet returns every revision reachable from id over parent and
// dependency edges, excluding id itself.
func (m *Map) ancestorSet(id string, memo map[string]map[string]bool) map[string]bool {
	if set, ok := memo[id]; ok {
		return set
	}
	set := make(map[string]bool)
	memo[id] = set
	rev, ok := m.revs[id]
	if !ok {
		return set
	}
	for _, down := range rev.allDown() {
		set[down] = true
		for anc := range m.ancestorSet(down, memo) {
			set[anc] = true
		}
	}
	return set
}

func (m *Map) computeHeadsAndBases() {
	m.heads, m.realHeads, m.bases, m.realBases = nil, nil, nil, nil
	for _, id := range m.order {
		rev := m.revs[id]
		if rev.IsHead() {
			m.heads = append(m.heads, id)
		}
		if rev.isRealHead() {
			m.realHeads = append(m.realHeads, id)
		}
		if rev.IsBase() {
			m.bases = append(m.bases, id)
		}
		if rev.isRealBase() {
			m.realBases = append(m.realBases, id)
		}
	}
}

// propagateBranches recomputes branch membership from scratch. A label
// applies to every structural descendant of the revision carrying it, and
// to the chain below it until a branch point or a merge point.
func (m *Map) propagateBranches() {
	for _, rev := range m.revs {
		rev.branches = nil
	}
	for _, id := range m.order {
		rev := m.revs[id]
		if len(rev.BranchLabels) == 0 {
			continue
		}
		desc, _ := m.descendants([]*Revision{rev}, descendStructural, false)
		for _, d := range desc {
			d.addBranches(rev.BranchLabels)
		}
		for node := rev; !node.isRealBranchPoint() && !node.IsMergePoint(); {
			node.addBranches(rev.BranchLabels)
			if len(node.DownRevisions) == 0 {
				break
			}
			node = m.revs[node.DownRevisions[0]]
		}
	}
}

// AddRevision inserts a revision into a built map. A revision whose id is
// already present replaces the existing one and is recorded as a duplicate
// repair.
func (m *Map) AddRevision(rev *Revision) error {
	return m.add(rev, false)
}

// ReplaceRevision swaps an existing revision for rev, which must carry the
// same id.
func (m *Map) ReplaceRevision(rev *Revision) error {
	return m.add(rev, true)
}

func (m *Map) add(in *Revision, replace bool) (err error) {
	if in == nil {
		return &RevisionError{Message: "Cannot add a nil revision"}
	}
	if err := m.Build(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// a rejected add leaves no repairs behind
	nRepairs := len(m.repairs)
	defer func() {
		if err != nil {
			m.repairs = m.repairs[:nRepairs]
		}
	}()

	rev := in.clone()
	if err := rev.Validate(); err != nil {
		return err
	}
	prev, exists := m.revs[rev.ID]
	if replace && !exists {
		return &RevisionError{Message: fmt.Sprintf("Revision %s is not present and cannot be replaced", rev.ID)}
	}
	if err := m.checkDownRevisions(rev); err != nil {
		return err
	}
	if owner, ok := m.labels[rev.ID]; ok && owner.ID != rev.ID {
		return &RevisionError{Message: fmt.Sprintf(
			"Branch name '%s' in revision %s already used by revision %s", rev.ID, owner.ID, rev.ID)}
	}

	savedLabels := make(map[string]*Revision, len(m.labels))
	for k, v := range m.labels {
		savedLabels[k] = v
	}
	if err := m.registerLabels(rev, prev); err != nil {
		m.labels = savedLabels
		return err
	}
	if err := m.resolveDependencies(rev); err != nil {
		m.labels = savedLabels
		return err
	}

	if !exists {
		m.order = append(m.order, rev.ID)
		m.revs[rev.ID] = rev
		m.attach(rev)
		m.normalize(rev, make(map[string]map[string]bool))
		m.heads = append(slices.DeleteFunc(m.heads, func(h string) bool {
			return slices.Contains(rev.DownRevisions, h)
		}), rev.ID)
		m.realHeads = append(slices.DeleteFunc(m.realHeads, func(h string) bool {
			return slices.Contains(rev.resolvedDeps, h) || slices.Contains(rev.DownRevisions, h)
		}), rev.ID)
		if rev.IsBase() {
			m.bases = append(m.bases, rev.ID)
		}
		if rev.isRealBase() {
			m.realBases = append(m.realBases, rev.ID)
		}
		m.propagateBranches()
		return nil
	}

	m.swap(prev, rev)
	if err := m.detectCycles(); err != nil {
		m.swap(rev, prev)
		m.labels = savedLabels
		return err
	}
	if !replace {
		m.repair(RepairDuplicate, rev.ID, rev.ID,
			fmt.Sprintf("Revision %s is present more than once", rev.ID))
	}
	m.normalizeDependencies()
	m.computeHeadsAndBases()
	m.propagateBranches()
	return nil
}

// swap replaces old with next in the index, keeping next's children.
func (m *Map) swap(old, next *Revision) {
	m.detach(old)
	next.nextrev, next.allNextrev = old.nextrev, old.allNextrev
	m.revs[next.ID] = next
	m.attach(next)
}

// Len returns the number of revisions in the map.
func (m *Map) Len() (int, error) {
	if err := m.Build(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

// Heads returns the ids of revisions that are nobody's parent, in input order.
func (m *Map) Heads() ([]string, error) { return m.idList(func() []string { return m.heads }) }

// RealHeads returns the ids of revisions that are neither a parent nor a
// dependency of any other revision.
func (m *Map) RealHeads() ([]string, error) { return m.idList(func() []string { return m.realHeads }) }

// Bases returns the ids of revisions with no parents.
func (m *Map) Bases() ([]string, error) { return m.idList(func() []string { return m.bases }) }

// RealBases returns the ids of revisions with neither parents nor dependencies.
func (m *Map) RealBases() ([]string, error) { return m.idList(func() []string { return m.realBases }) }

func (m *Map) idList(get func() []string) ([]string, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(get()), nil
}

// Revisions returns every revision in input order. The revisions are live
// views; see the package documentation on concurrency.
func (m *Map) Revisions() ([]*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Revision, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.revs[id])
	}
	return out, nil
}

// BranchLabels returns every branch label mapped to the id of the revision
// that declares it.
func (m *Map) BranchLabels() (map[string]string, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.labels))
	for label, rev := range m.labels {
		out[label] = rev.ID
	}
	return out, nil
}

// Repairs returns the inconsistencies corrected while building and adding.
func (m *Map) Repairs() ([]Repair, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.repairs), nil
}
