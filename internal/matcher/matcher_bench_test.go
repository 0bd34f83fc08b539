package matcher

import (
	"fmt"
	"testing"
)

func benchTable(n int) []DeviceConfig {
	table := make([]DeviceConfig, 0, n)
	for i := 0; i < n; i++ {
		table = append(table, DeviceConfig{
			Name: fmt.Sprintf("dev%d", i),
			Rule: Rule{
				{Key: "ID_VENDOR_ID", Pattern: MustCompile(fmt.Sprintf("%04x", i))},
				{Key: "ID_INPUT_KEYBOARD", Pattern: MustCompile("1")},
			},
		})
	}
	return table
}

func benchDevice() Properties {
	return Chain(
		map[string]string{"DEVNAME": "/dev/input/event3", "ID_INPUT_KEYBOARD": "1"},
		map[string]string{"NAME": `"USB Keyboard"`},
		map[string]string{"ID_VENDOR_ID": "0009"},
	)
}

func BenchmarkMatchLastOfTen(b *testing.B) {
	table := benchTable(10)
	dev := benchDevice()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Match(dev, table)
	}
}

func BenchmarkMatchNoHit(b *testing.B) {
	table := benchTable(50)
	dev := Chain(map[string]string{"ID_INPUT_MOUSE": "1"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Match(dev, table)
	}
}
