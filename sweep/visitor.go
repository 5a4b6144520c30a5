// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sweep implements the sorted-interval sweep driver and the
// visitor protocol it drives. Neither the driver nor any Visitor
// implementation is safe for concurrent use; a sweep is a single
// straight-line pass.
package sweep

import "github.com/grailbio/bedtk/interval"

// Visitor is the state machine every statistical or set-algebra reducer
// implements. The driver guarantees the following ordering contract:
//
//  1. OnStart(r) precedes every OnAdd/OnDelete/OnDone for r.
//  2. For a fixed r, all OnDelete calls triggered by r's arrival precede
//     every OnAdd call for r.
//  3. OnDelete calls are issued in ascending sort order of the deleted
//     items.
//  4. OnDone is called exactly once per OnStart.
//  5. OnPurge is called after the previous group's last OnDone and before
//     the next OnStart, whenever the active window empties with input
//     remaining.
//  6. OnEnd is the final callback; nothing follows it.
type Visitor interface {
	// OnStart begins processing a new reference.
	OnStart(ref *interval.Record)
	// OnAdd reports that a map-item has just entered the active window.
	OnAdd(m *interval.Record)
	// OnDelete reports that a map-item is about to leave the active
	// window.
	OnDelete(m *interval.Record)
	// OnDone finishes the current reference; the visitor should emit its
	// output for it here.
	OnDone()
	// OnPurge is called when the window empties mid-sweep, signaling a
	// gap in the reference stream to visitors that cache state beyond
	// the window.
	OnPurge()
	// OnEnd is called exactly once, after the sweep's last OnDone (or
	// immediately, if the sweep produced no references).
	OnEnd()
}

// Iterator is the contract the sweep driver pulls records through. A
// source.Iterator satisfies it structurally.
type Iterator interface {
	// Scan advances to the next record, returning false at EOF or on
	// error; check Err() to distinguish the two.
	Scan() bool
	// Record returns the record most recently made current by Scan.
	Record() *interval.Record
	// Err returns the first error encountered, if any.
	Err() error
}

// MultiVisitor fans one event out to N registered visitors before the
// driver proceeds to the next event: for each event, all visitors
// observe it in the order they were registered.
type MultiVisitor struct {
	visitors []Visitor
}

// NewMultiVisitor returns a MultiVisitor dispatching to vs in order.
func NewMultiVisitor(vs ...Visitor) *MultiVisitor {
	return &MultiVisitor{visitors: vs}
}

func (m *MultiVisitor) OnStart(ref *interval.Record) {
	for _, v := range m.visitors {
		v.OnStart(ref)
	}
}

func (m *MultiVisitor) OnAdd(rec *interval.Record) {
	for _, v := range m.visitors {
		v.OnAdd(rec)
	}
}

func (m *MultiVisitor) OnDelete(rec *interval.Record) {
	for _, v := range m.visitors {
		v.OnDelete(rec)
	}
}

func (m *MultiVisitor) OnDone() {
	for _, v := range m.visitors {
		v.OnDone()
	}
}

func (m *MultiVisitor) OnPurge() {
	for _, v := range m.visitors {
		v.OnPurge()
	}
}

func (m *MultiVisitor) OnEnd() {
	for _, v := range m.visitors {
		v.OnEnd()
	}
}
