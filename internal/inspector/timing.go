package inspector

import (
	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/proxy"
)

type Navigation struct {
	base
}

func NewNavigation(opts Options) *Navigation {
	return &Navigation{base: newBase("navigation", opts)}
}

func (n *Navigation) Name() string { return "navigation" }

func (n *Navigation) Init(pub Publisher) {
	n.pub = pub
	listen(&n.base, proxy.TopicNavigationTiming, func(t proxy.NavigationTiming, _ bus.Event) {
		n.publish(n.pub.CreateMessage([]string{model.TypeNavigationTiming}, &model.NavigationPayload{Timing: t.Timing}))
	})
}

type Resource struct {
	base
}

func NewResource(opts Options) *Resource {
	return &Resource{base: newBase("resource", opts)}
}

func (r *Resource) Name() string { return "resource" }

func (r *Resource) Init(pub Publisher) {
	r.pub = pub
	listen(&r.base, proxy.TopicResourceTiming, func(entries []page.Entry, _ bus.Event) {
		r.publish(r.pub.CreateMessage([]string{model.TypeResourceTiming}, &model.ResourcePayload{Entries: entries}))
	})
}
