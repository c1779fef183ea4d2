package store

// Result handles are written by a Store implementation while executing a
// batch and read by the caller after Pipelined returns.

type StringResult struct {
	val string
	ok  bool
}

// Val returns the value and whether the key existed.
func (r *StringResult) Val() (string, bool) { return r.val, r.ok }

// Fill is called by Store implementations.
func (r *StringResult) Fill(v string, ok bool) { r.val, r.ok = v, ok }

type BoolResult struct{ val bool }

func (r *BoolResult) Val() bool { return r.val }

func (r *BoolResult) Fill(v bool) { r.val = v }

type IntResult struct{ val int64 }

func (r *IntResult) Val() int64 { return r.val }

func (r *IntResult) Fill(v int64) { r.val = v }

type MembersResult struct{ val []string }

func (r *MembersResult) Val() []string { return r.val }

func (r *MembersResult) Fill(v []string) { r.val = v }

type HashResult struct{ val map[string]string }

func (r *HashResult) Val() map[string]string { return r.val }

func (r *HashResult) Fill(v map[string]string) { r.val = v }
