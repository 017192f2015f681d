// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import "time"

// Kind identifies an event variant.
type Kind string

// Event kinds accepted by the pipeline.
const (
	KindPageView       Kind = "page_view"
	KindClick          Kind = "click"
	KindForm           Kind = "form"
	KindChat           Kind = "chat"
	KindTool           Kind = "tool"
	KindScroll         Kind = "scroll"
	KindEngagementTick Kind = "engagement_tick"
	KindPageExit       Kind = "page_exit"
	KindError          Kind = "error"
	KindPerformance    Kind = "performance"
)

// Event is the tagged union of all trackable variants. Each variant
// carries exactly its kind-specific required fields; an invalid event
// cannot be constructed.
type Event interface {
	EventKind() Kind
}

// PageView records a page load. ServiceID is set when the page is a
// service detail view, which scores higher and feeds interest tracking.
type PageView struct {
	Path      string `json:"path"`
	Title     string `json:"title,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
}

func (PageView) EventKind() Kind { return KindPageView }

// FormAction distinguishes the stages of a booking form.
type FormAction string

// Form actions.
const (
	FormStart  FormAction = "start"
	FormField  FormAction = "field"
	FormSubmit FormAction = "submit"
)

// Click records an interaction with a DOM element. Element text is
// sanitized before leaving the pipeline. OptIn marks elements outside
// the interactive tag allow-list that explicitly requested tracking.
type Click struct {
	Tag   string `json:"tag"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Path  string `json:"path"`
	OptIn bool   `json:"opt_in,omitempty"`
}

func (Click) EventKind() Kind { return KindClick }

// Form records a booking form lifecycle stage. Field values are
// sanitized before leaving the pipeline.
type Form struct {
	FormID string     `json:"form_id"`
	Action FormAction `json:"action"`
	Field  string     `json:"field,omitempty"`
	Value  string     `json:"value,omitempty"`
}

func (Form) EventKind() Kind { return KindForm }

// Chat records one chat message. Message text is sanitized before
// storage and forwarding.
type Chat struct {
	Message  string `json:"message"`
	FromUser bool   `json:"from_user"`
}

func (Chat) EventKind() Kind { return KindChat }

// Tool records interaction with an interactive tool (dosha quiz,
// symptom checker). Completion scores and marks the tools interest.
type Tool struct {
	ToolID    string `json:"tool_id"`
	Completed bool   `json:"completed"`
	Result    string `json:"result,omitempty"`
}

func (Tool) EventKind() Kind { return KindTool }

// Scroll reports the current scroll depth percentage for a page. The
// pipeline keeps a rising watermark per page and fires each threshold
// crossing exactly once.
type Scroll struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

func (Scroll) EventKind() Kind { return KindScroll }

// EngagementTick accrues one fixed slice of foreground engagement time.
type EngagementTick struct {
	Interval time.Duration `json:"interval"`
}

func (EngagementTick) EventKind() Kind { return KindEngagementTick }

// PageExit records the end of a page visit, closing the content
// performance sample for the path.
type PageExit struct {
	Path          string        `json:"path"`
	TimeOnPage    time.Duration `json:"time_on_page"`
	ScrollDepth   int           `json:"scroll_depth"`
	HadEngagement bool          `json:"had_engagement"`
	Converted     bool          `json:"converted"`
}

func (PageExit) EventKind() Kind { return KindPageExit }

// Error is operational telemetry from the host page. It bypasses the
// consent gate: health monitoring is essential, not behavioral.
type Error struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func (Error) EventKind() Kind { return KindError }

// Performance carries a timing or vitals measurement.
type Performance struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Path   string  `json:"path,omitempty"`
}

func (Performance) EventKind() Kind { return KindPerformance }
