package page

// TimingFields is the fixed set of navigation timing fields, in the order
// the platform fills them.
var TimingFields = []string{
	"navigationStart",
	"fetchStart",
	"domainLookupStart",
	"domainLookupEnd",
	"connectStart",
	"connectEnd",
	"requestStart",
	"responseStart",
	"responseEnd",
	"domLoading",
	"domInteractive",
	"domContentLoadedEventStart",
	"domContentLoadedEventEnd",
	"domComplete",
	"loadEventStart",
	"loadEventEnd",
	"firstPaint",
}

// Timing is the navigation timing record, as offsets from navigation start.
// Unrecorded fields are zero. FirstPaint is only set by hosts that expose it
// directly.
type Timing struct {
	NavigationStart            float64 `json:"navigationStart"`
	FetchStart                 float64 `json:"fetchStart"`
	DomainLookupStart          float64 `json:"domainLookupStart"`
	DomainLookupEnd            float64 `json:"domainLookupEnd"`
	ConnectStart               float64 `json:"connectStart"`
	ConnectEnd                 float64 `json:"connectEnd"`
	RequestStart               float64 `json:"requestStart"`
	ResponseStart              float64 `json:"responseStart"`
	ResponseEnd                float64 `json:"responseEnd"`
	DomLoading                 float64 `json:"domLoading"`
	DomInteractive             float64 `json:"domInteractive"`
	DomContentLoadedEventStart float64 `json:"domContentLoadedEventStart"`
	DomContentLoadedEventEnd   float64 `json:"domContentLoadedEventEnd"`
	DomComplete                float64 `json:"domComplete"`
	LoadEventStart             float64 `json:"loadEventStart"`
	LoadEventEnd               float64 `json:"loadEventEnd"`
	FirstPaint                 float64 `json:"firstPaint,omitempty"`
}

func IsTimingField(name string) bool {
	for _, f := range TimingFields {
		if f == name {
			return true
		}
	}
	return false
}

func timingFromPoints(p map[string]float64) Timing {
	return Timing{
		NavigationStart:            p["navigationStart"],
		FetchStart:                 p["fetchStart"],
		DomainLookupStart:          p["domainLookupStart"],
		DomainLookupEnd:            p["domainLookupEnd"],
		ConnectStart:               p["connectStart"],
		ConnectEnd:                 p["connectEnd"],
		RequestStart:               p["requestStart"],
		ResponseStart:              p["responseStart"],
		ResponseEnd:                p["responseEnd"],
		DomLoading:                 p["domLoading"],
		DomInteractive:             p["domInteractive"],
		DomContentLoadedEventStart: p["domContentLoadedEventStart"],
		DomContentLoadedEventEnd:   p["domContentLoadedEventEnd"],
		DomComplete:                p["domComplete"],
		LoadEventStart:             p["loadEventStart"],
		LoadEventEnd:               p["loadEventEnd"],
		FirstPaint:                 p["firstPaint"],
	}
}
