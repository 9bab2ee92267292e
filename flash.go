// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"github.com/boljen/go-bitmap"
)

// Page is one erasable unit of the target's flash, addressed by its index.
// Page 0 starts at FlashBase, every page is PageSize bytes, pages are
// contiguous and do not overlap.
type Page uint8

// PageAt returns the page containing the given absolute address.
func PageAt(address uint32) Page {
	return Page((address - FlashBase) / PageSize)
}

// Begin returns the address of the first byte of the page.
func (p Page) Begin() uint32 {
	return uint32(p)*PageSize + FlashBase
}

// End returns the address of the last byte of the page.
func (p Page) End() uint32 {
	return (uint32(p)+1)*PageSize + FlashBase - 1
}

// erasePlan collects pages to be erased. Overlapping area and page
// requests collapse into a single erase per page; the plan is emitted in
// ascending page order.
type erasePlan struct {
	marks bitmap.Bitmap
}

func newErasePlan() *erasePlan {
	return &erasePlan{marks: bitmap.New(pageCount)}
}

func (e *erasePlan) addPage(page Page) {
	e.marks.Set(int(page), true)
}

func (e *erasePlan) addPages(pages []Page) {
	for _, page := range pages {
		e.addPage(page)
	}
}

// addArea marks the minimal set of pages covering [start, start+length).
// A zero-length area marks nothing.
func (e *erasePlan) addArea(start uint32, length int) {
	if length == 0 {
		return
	}

	first := PageAt(start)
	last := PageAt(start + uint32(length) - 1)

	for page := first; ; page++ {
		e.addPage(page)
		if page == last {
			break
		}
	}
}

func (e *erasePlan) pages() []Page {
	var pages []Page

	for i := 0; i < pageCount; i++ {
		if e.marks.Get(i) {
			pages = append(pages, Page(i))
		}
	}

	return pages
}
