package bridge

import (
	"fmt"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/gateways/mqtt"
)

// DuplicationFilter remembers recent deliveries so that a QoS 1 redelivery of
// a reading is not counted twice.
type DuplicationFilter struct {
	lock                         sync.Mutex
	filter                       *bloomFilter.BloomFilter
	filterCapacity               uint
	maximumPercentageFilterUsage float32
}

func NewDuplicationFilter(conf entities.DuplicationConfig) *DuplicationFilter {
	return &DuplicationFilter{
		filter:                       bloomFilter.NewWithEstimates(conf.Capacity, conf.FalsePositiveRate),
		filterCapacity:               conf.Capacity,
		maximumPercentageFilterUsage: conf.ResetUsagePercentage,
	}
}

// IsMessageDuplicated reports whether msg is flagged as a redelivery of a
// delivery already seen. Every other delivery is remembered.
func (d *DuplicationFilter) IsMessageDuplicated(msg mqtt.InMsg) bool {
	key := deliveryKey(msg)

	d.lock.Lock()
	defer d.lock.Unlock()
	if msg.Duplicate && d.filter.Test(key) {
		return true
	}
	d.resetDuplicationFilter()
	d.filter.Add(key)
	return false
}

func (d *DuplicationFilter) resetDuplicationFilter() {
	approximatedFilterSize := d.filter.ApproximatedSize()
	currentPercentageFilterUsage := (float32(approximatedFilterSize) / float32(d.filterCapacity)) * 100
	if currentPercentageFilterUsage >= d.maximumPercentageFilterUsage {
		d.filter.ClearAll()
	}
}

func deliveryKey(msg mqtt.InMsg) []byte {
	return []byte(fmt.Sprintf("%s#%d", msg.Topic, msg.MessageID))
}

func noDuplication(mqtt.InMsg) bool { return false }
