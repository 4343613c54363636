package testutils

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/srg/lednet/internal/device"
)

// FakeAdvertisement is a static device.Advertisement.
type FakeAdvertisement struct {
	Name          string               `json:"name"`
	Address       string               `json:"address"`
	Rssi          int                  `json:"rssi"`
	ServiceUUIDs  []string             `json:"services"`
	Manufacturer  []byte               `json:"manufacturer_data"`
	ServiceBlobs  []device.ServiceData `json:"service_data"`
	IsConnectable bool                 `json:"connectable"`
}

func (a *FakeAdvertisement) LocalName() string                 { return a.Name }
func (a *FakeAdvertisement) ManufacturerData() []byte          { return a.Manufacturer }
func (a *FakeAdvertisement) ServiceData() []device.ServiceData { return a.ServiceBlobs }
func (a *FakeAdvertisement) Services() []string                { return a.ServiceUUIDs }
func (a *FakeAdvertisement) Connectable() bool                 { return a.IsConnectable }
func (a *FakeAdvertisement) RSSI() int                         { return a.Rssi }
func (a *FakeAdvertisement) Addr() string                      { return a.Address }

// AdvertisementBuilder builds FakeAdvertisements with a fluent API.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder starts a connectable advertisement with no payloads.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{IsConnectable: true, Rssi: -60}}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceUUIDs = append(b.adv.ServiceUUIDs, uuids...)
	return b
}

// WithManufacturerData sets the raw manufacturer data, company ID first.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.Manufacturer = data
	return b
}

func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.adv.ServiceBlobs = append(b.adv.ServiceBlobs, device.ServiceData{UUID: uuid, Data: data})
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}
	return b
}

// Build returns a copy of the configured advertisement.
func (b *AdvertisementBuilder) Build() *FakeAdvertisement {
	adv := b.adv
	return &adv
}

// FakeScanner is a device.ScanningDevice replaying fixed advertisements.
type FakeScanner struct {
	Advertisements []device.Advertisement
	// Err is returned after the replay.
	Err error
	// WaitForCancel keeps Scan running until ctx is done, like a real scan.
	WaitForCancel bool
}

func (f *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	for _, adv := range f.Advertisements {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(adv)
	}
	if f.WaitForCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.Err
}
