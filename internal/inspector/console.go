package inspector

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/normalize"
	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/proxy"
)

const callStackDepth = 32

// consoleCall is the working state of one console message.
type consoleCall struct {
	call    proxy.ConsoleCall
	ev      bus.Event
	types   []string
	payload *model.LogPayload
}

// consoleRule describes how a console method becomes a message. A processor
// returning false suppresses the message.
type consoleRule struct {
	level           string
	nullBypass      bool
	tokenTypeBypass bool
	fullStack       bool
	processor       func(c *Console, cc *consoleCall) bool
}

var consoleRules = map[string]consoleRule{
	"log":            {level: "log", nullBypass: true},
	"info":           {level: "info", nullBypass: true},
	"warn":           {level: "warn", nullBypass: true},
	"error":          {level: "error", nullBypass: true, fullStack: true},
	"debug":          {level: "debug", nullBypass: true},
	"trace":          {level: "trace", fullStack: true},
	"dir":            {level: "log", nullBypass: true, tokenTypeBypass: true},
	"dirxml":         {level: "log", nullBypass: true, tokenTypeBypass: true},
	"table":          {level: "log", nullBypass: true, tokenTypeBypass: true},
	"assert":         {level: "assert", fullStack: true, processor: (*Console).assert},
	"count":          {level: "count", processor: (*Console).count},
	"clear":          {level: "clear"},
	"group":          {level: "group", processor: (*Console).groupBegin},
	"groupCollapsed": {level: "group", processor: (*Console).groupBegin},
	"groupEnd":       {level: "groupEnd", processor: (*Console).groupEnd},
	"time":           {level: "time", processor: (*Console).timeBegin},
	"timeEnd":        {level: "timeEnd", processor: (*Console).timeEnd},
	"timeStamp":      {level: "timeStamp"},
	"profile":        {level: "profile", processor: (*Console).profileBegin},
	"profileEnd":     {level: "profileEnd", processor: (*Console).profileEnd},
}

// Console turns console calls into log messages and tracks count, group,
// profile and timer state across calls.
type Console struct {
	base

	mu           sync.Mutex
	counts       map[string]int
	groups       []model.Correlation
	profiles     []model.Correlation
	timers       map[string]model.Correlation
	defaultTimer *model.Correlation
}

func NewConsole(opts Options) *Console {
	return &Console{
		base:   newBase("console", opts),
		counts: make(map[string]int),
		timers: make(map[string]model.Correlation),
	}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Init(pub Publisher) {
	c.pub = pub
	listen(&c.base, proxy.TopicConsoleCall, c.onCall)
}

func (c *Console) onCall(call proxy.ConsoleCall, ev bus.Event) {
	rule, ok := consoleRules[call.Method]
	if !ok {
		c.logger.Warn("console method without a rule", "method", call.Method)
		return
	}
	if rule.nullBypass && len(call.Args) == 0 {
		return
	}
	cc := &consoleCall{
		call:  call,
		ev:    ev,
		types: []string{model.TypeLogWrite},
		payload: &model.LogPayload{
			Level:     rule.level,
			Method:    call.Method,
			TimeStamp: normalize.FormatDate(ev.TimeStamp),
		},
	}
	if rule.tokenTypeBypass {
		cc.payload.Tokens = valueTokens(call.Args)
	} else {
		cc.payload.Tokens = formatTokens(call.Args)
	}
	if rule.processor != nil && !rule.processor(c, cc) {
		return
	}

	m := c.pub.CreateMessage(cc.types, cc.payload)
	depth := 1
	if rule.fullStack {
		depth = callStackDepth
	}
	clock.Defer(c.clock, func() {
		if frames := call.Stack.Frames(depth); len(frames) > 0 {
			cc.payload.Stack = frames
			m.AddTypes(model.TypeCallStack)
		}
		c.publish(m)
	})
}

func (c *Console) assert(cc *consoleCall) bool {
	args := cc.call.Args
	if len(args) > 0 && page.Truthy(args[0]) {
		return false
	}
	rest := []any{"Assertion failed"}
	if len(args) > 1 {
		rest = append(rest, args[1:]...)
	}
	cc.payload.Tokens = formatTokens(rest)
	return true
}

func (c *Console) count(cc *consoleCall) bool {
	label := labelOf(cc.call.Args)
	c.mu.Lock()
	c.counts[label]++
	n := c.counts[label]
	c.mu.Unlock()
	cc.payload.Count = n
	cc.payload.Tokens = []model.LogToken{{Type: tokenString, Value: fmt.Sprintf("%s: %d", label, n)}}
	cc.types = append(cc.types, model.TypeLogCount)
	return true
}

func (c *Console) groupBegin(cc *consoleCall) bool {
	corr := c.begin(cc, labelOf(cc.call.Args), model.TypeLogGroupBegin)
	c.mu.Lock()
	c.groups = append(c.groups, corr)
	c.mu.Unlock()
	return true
}

func (c *Console) groupEnd(cc *consoleCall) bool {
	c.mu.Lock()
	corr, ok := pop(&c.groups)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.end(cc, corr, model.TypeLogGroupEnd)
	return true
}

func (c *Console) profileBegin(cc *consoleCall) bool {
	corr := c.begin(cc, labelOf(cc.call.Args), model.TypeLogProfileBegin)
	c.mu.Lock()
	c.profiles = append(c.profiles, corr)
	c.mu.Unlock()
	return true
}

func (c *Console) profileEnd(cc *consoleCall) bool {
	c.mu.Lock()
	corr, ok := pop(&c.profiles)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.end(cc, corr, model.TypeLogProfileEnd)
	return true
}

func (c *Console) timeBegin(cc *consoleCall) bool {
	label, isDefault := timerLabel(cc.call.Args)
	corr := c.begin(cc, label, model.TypeLogTimespanBegin)
	c.mu.Lock()
	if isDefault {
		c.defaultTimer = &corr
	} else {
		c.timers[label] = corr
	}
	c.mu.Unlock()
	return true
}

// timeEnd closes a timer. An unknown timer is measured from offset zero.
func (c *Console) timeEnd(cc *consoleCall) bool {
	label, isDefault := timerLabel(cc.call.Args)
	c.mu.Lock()
	var (
		corr model.Correlation
		ok   bool
	)
	if isDefault {
		if c.defaultTimer != nil {
			corr, ok = *c.defaultTimer, true
			c.defaultTimer = nil
		}
	} else {
		corr, ok = c.timers[label]
		delete(c.timers, label)
	}
	c.mu.Unlock()
	if !ok {
		corr = model.Correlation{ID: uuid.NewString(), Label: label}
	}
	c.end(cc, corr, model.TypeLogTimespanEnd)
	cc.payload.Tokens = []model.LogToken{{Type: tokenString, Value: fmt.Sprintf("%s: %gms", label, cc.payload.Correlation.Duration)}}
	return true
}

func (c *Console) begin(cc *consoleCall, label, kind string) model.Correlation {
	corr := model.Correlation{ID: uuid.NewString(), Label: label, Offset: cc.ev.Offset}
	cc.payload.Correlation = &corr
	cc.types = append(cc.types, kind, model.TypeBeginCorrelation)
	return corr
}

func (c *Console) end(cc *consoleCall, corr model.Correlation, kind string) {
	corr.Duration = cc.ev.Offset - corr.Offset
	cc.payload.Correlation = &corr
	cc.types = append(cc.types, kind, model.TypeEndCorrelation)
}

func pop(stack *[]model.Correlation) (model.Correlation, bool) {
	s := *stack
	if len(s) == 0 {
		return model.Correlation{}, false
	}
	top := s[len(s)-1]
	*stack = s[:len(s)-1]
	return top, true
}

func labelOf(args []any) string {
	if len(args) == 0 || args[0] == nil {
		return "default"
	}
	return fmt.Sprint(args[0])
}

func timerLabel(args []any) (string, bool) {
	label := labelOf(args)
	return label, label == "default"
}
