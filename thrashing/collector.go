package thrashing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vkngwrapper/uvm/processor"
)

// Prometheus metric descriptor indices and descriptor table
const (
	thrashingDesc = iota
	throttleDesc
	pinLocalDesc
	pinRemoteDesc
	pinnedPagesDesc
	blocksDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	thrashingDesc: prometheus.NewDesc(
		"uvm_thrashing_thrashing_total",
		"Number of pages detected as thrashing on an event from the processor",
		[]string{"processor"}, nil,
	),
	throttleDesc: prometheus.NewDesc(
		"uvm_thrashing_throttle_total",
		"Number of throttle hints returned to the processor",
		[]string{"processor"}, nil,
	),
	pinLocalDesc: prometheus.NewDesc(
		"uvm_thrashing_pin_local_total",
		"Number of pin hints that pinned a page on the faulting processor",
		[]string{"processor"}, nil,
	),
	pinRemoteDesc: prometheus.NewDesc(
		"uvm_thrashing_pin_remote_total",
		"Number of pin hints that mapped the faulting processor to a page pinned elsewhere",
		[]string{"processor"}, nil,
	),
	pinnedPagesDesc: prometheus.NewDesc(
		"uvm_thrashing_pinned_pages",
		"Number of pinned pages waiting for deferred unpin in the address space",
		[]string{"space"}, nil,
	),
	blocksDesc: prometheus.NewDesc(
		"uvm_thrashing_blocks",
		"Number of blocks registered in the address space",
		[]string{"space"}, nil,
	),
}

type collector struct {
	module *Module
}

// NewCollector creates a Prometheus collector exporting the statistics of the module and the
// pinned page count of each of its spaces
func NewCollector(module *Module) prometheus.Collector {
	return &collector{module: module}
}

// Describe implements prometheus.Collector interface
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector interface
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for i := 0; i < processor.MaxProcessors; i++ {
		id := processor.ID(i)
		stats, ok := c.module.Statistics(id)
		if !ok {
			continue
		}

		label := id.String()
		ch <- prometheus.MustNewConstMetric(descriptors[thrashingDesc], prometheus.CounterValue, float64(stats.Thrashing), label)
		ch <- prometheus.MustNewConstMetric(descriptors[throttleDesc], prometheus.CounterValue, float64(stats.Throttle), label)
		ch <- prometheus.MustNewConstMetric(descriptors[pinLocalDesc], prometheus.CounterValue, float64(stats.PinLocal), label)
		ch <- prometheus.MustNewConstMetric(descriptors[pinRemoteDesc], prometheus.CounterValue, float64(stats.PinRemote), label)
	}

	for _, space := range c.module.Spaces() {
		label := space.ID().String()
		ch <- prometheus.MustNewConstMetric(descriptors[pinnedPagesDesc], prometheus.GaugeValue, float64(space.PinnedPageCount()), label)
		ch <- prometheus.MustNewConstMetric(descriptors[blocksDesc], prometheus.GaugeValue, float64(space.BlockCount()), label)
	}
}
