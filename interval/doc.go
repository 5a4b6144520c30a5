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

/*
Package interval defines the half-open genomic interval record the bedtk
sweep core operates on, its BED-row parsing and formatting, the overlap
primitives (overlap, intersection, union, separation distance), and the
family of range predicates that classify a map-item against a reference
during a sweep.
*/
package interval
