package goble

import (
	"github.com/go-ble/ble"

	"github.com/srg/lednet/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string             { return a.adv.Addr().String() }

func (a *BLEAdvertisement) ServiceData() []device.ServiceData {
	raw := a.adv.ServiceData()
	out := make([]device.ServiceData, len(raw))
	for i, sd := range raw {
		out[i] = device.ServiceData{UUID: sd.UUID.String(), Data: sd.Data}
	}
	return out
}

func (a *BLEAdvertisement) Services() []string {
	raw := a.adv.Services()
	out := make([]string, len(raw))
	for i, svc := range raw {
		out[i] = svc.String()
	}
	return out
}
