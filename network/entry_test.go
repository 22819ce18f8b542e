package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/threadgen/schema"
)

func strPtr(s string) *string { return &s }

func TestBuildEntryAddressResolution(t *testing.T) {
	fallback := &schema.ManualIP{StaticIP: "10.0.0.5", Gateway: "10.0.0.1", Subnet: "255.255.255.0"}
	local := &schema.ManualIP{StaticIP: "192.168.4.2", Gateway: "192.168.4.1", Subnet: "255.255.255.0", DNS1: "1.1.1.1"}

	entry := BuildEntry(schema.NetworkConfig{ID: "n1", ManualIP: local}, fallback)
	require.NotNil(t, entry.Address)
	require.Equal(t, netip.MustParseAddr("192.168.4.2"), entry.Address.StaticIP)
	require.Equal(t, netip.MustParseAddr("1.1.1.1"), entry.Address.DNS1)
	require.False(t, entry.Address.DNS2.IsValid())

	entry = BuildEntry(schema.NetworkConfig{ID: "n2"}, fallback)
	require.NotNil(t, entry.Address)
	require.Equal(t, netip.MustParseAddr("10.0.0.5"), entry.Address.StaticIP)

	entry = BuildEntry(schema.NetworkConfig{ID: "n3"}, nil)
	require.Nil(t, entry.Address)
	require.Equal(t, LocalType, entry.LocalType)
	require.False(t, entry.Primary)
}

func TestBuildEntryCopiesTLVs(t *testing.T) {
	tlvs := strPtr("abcdefgh")
	entry := BuildEntry(schema.NetworkConfig{ID: "n1", TLVs: tlvs}, nil)
	require.True(t, entry.HasTLVs())
	*tlvs = "mutated!"
	require.Equal(t, "abcdefgh", *entry.TLVs)

	empty := BuildEntry(schema.NetworkConfig{ID: "n2", TLVs: strPtr("")}, nil)
	require.False(t, empty.HasTLVs())

	none := BuildEntry(schema.NetworkConfig{ID: "n3"}, nil)
	require.False(t, none.HasTLVs())
}

func TestBuildAllPreservesOrder(t *testing.T) {
	cfg := &schema.RadioConfig{
		ID: "net1",
		Networks: []schema.NetworkConfig{
			{ID: "c"}, {ID: "a"}, {ID: "b"},
		},
		Thread: &schema.PrimaryConfig{ID: "primary", TLVs: strPtr("0011223344"), APTimeout: "1min", Timeout: 60000},
	}
	entries, primary := BuildAll(cfg)
	require.Len(t, entries, 3)
	require.Equal(t, "c", entries[0].ID)
	require.Equal(t, "a", entries[1].ID)
	require.Equal(t, "b", entries[2].ID)

	require.NotNil(t, primary)
	require.True(t, primary.Primary)
	require.Equal(t, "primary", primary.ID)
	require.Equal(t, schema.Milliseconds(60000), primary.Timeout)
	require.Equal(t, "0011223344", *primary.TLVs)
}

func TestBuildAllWithoutPrimary(t *testing.T) {
	entries, primary := BuildAll(&schema.RadioConfig{ID: "net1"})
	require.Empty(t, entries)
	require.Nil(t, primary)

	entries, primary = BuildAll(nil)
	require.Nil(t, entries)
	require.Nil(t, primary)
}
