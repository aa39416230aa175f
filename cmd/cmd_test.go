package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgram = `
header_types:
  - name: standard_metadata_t
    fields:
      - {name: ingress_port, width: 9}
      - {name: egress_spec, width: 9}
      - {name: clone_spec, width: 32}
  - name: meta_t
    fields:
      - {name: seen, width: 32}
headers:
  - {name: standard_metadata, type: standard_metadata_t, metadata: true}
  - {name: meta, type: meta_t, metadata: true}
counters:
  - {name: port_hits, size: 8}
externs:
  - {name: inc, type: ExternIncrease}
actions:
  - name: forward
    calls:
      - {primitive: modify_field, args: [standard_metadata.egress_spec, "2"]}
      - {primitive: count, args: ["counter:port_hits", standard_metadata.ingress_port]}
      - {primitive: _ExternIncrease_increase_by, args: ["extern:inc", "3"]}
  - name: cut
    calls:
      - {primitive: truncate, args: ["8"]}
ingress: [forward]
egress: [cut]
`

func writeTestConfig(t *testing.T, program string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "program.yml"), []byte(program), 0644))
	cfg := `
engine:
  log:
    level: "warn"
  pipeline:
    workers: 2
  source:
    port: 1
  program: "program.yml"
`
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func writeTestPcap(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pcap")
	fh, err := os.Create(path)
	require.NoError(t, err)
	defer fh.Close()

	w := pcapgo.NewWriter(fh)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i := 0; i < n; i++ {
		data := make([]byte, 64)
		data[0] = byte(i)
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: 64, Length: 64}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate(writeTestConfig(t, testProgram), "", &buf))
	assert.Equal(t, "VALID: 2 header(s), 2 action(s), 1 ingress, 1 egress, 1 extern(s), 0 calculation(s)\n", buf.String())
}

func TestRunValidate_BadProgram(t *testing.T) {
	bad := strings.Replace(testProgram, "counter:port_hits", "counter:missing", 1)
	err := runValidate(writeTestConfig(t, bad), "", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunValidate_ProgramOverride(t *testing.T) {
	configPath := writeTestConfig(t, testProgram)
	other := filepath.Join(t.TempDir(), "other.yml")
	require.NoError(t, os.WriteFile(other, []byte("ingress: [nope]\n"), 0644))
	assert.Error(t, runValidate(configPath, other, &bytes.Buffer{}))
}

func TestRunEngine_ConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	opts := runOptions{configPath: writeTestConfig(t, testProgram), pcapIn: writeTestPcap(t, 5)}
	require.NoError(t, runEngine(context.Background(), opts, &buf))

	out := buf.String()
	assert.Equal(t, 5, strings.Count(out, "port=2 len=8 "))
	assert.Contains(t, out, "received=5 emitted=5 dropped=0")
}

func TestRunEngine_FileSink(t *testing.T) {
	var buf bytes.Buffer
	outPath := filepath.Join(t.TempDir(), "out.pcap")
	opts := runOptions{
		configPath: writeTestConfig(t, testProgram),
		pcapIn:     writeTestPcap(t, 3),
		pcapOut:    outPath,
	}
	require.NoError(t, runEngine(context.Background(), opts, &buf))
	assert.Contains(t, buf.String(), "received=3 emitted=3")

	fh, err := os.Open(outPath)
	require.NoError(t, err)
	defer fh.Close()
	r, err := pcapgo.NewReader(fh)
	require.NoError(t, err)
	count := 0
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		assert.Len(t, data, 8)
		count++
	}
	assert.Equal(t, 3, count)
}

func TestRunEngine_MissingSource(t *testing.T) {
	opts := runOptions{configPath: writeTestConfig(t, testProgram)}
	assert.Error(t, runEngine(context.Background(), opts, &bytes.Buffer{}))
}

func TestRunPrimitives(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runPrimitives(&buf))
	out := buf.String()
	for _, name := range []string{"modify_field", "clone_ingress_pkt_to_egress", "execute_meter", "_ExternIncrease_increase", "_ExternIncrease_increase_by", "no_op"} {
		assert.Contains(t, out, name+" ")
	}
}

func TestShippedConfigValidates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate(filepath.Join("..", "configs", "actionengine.yml"), "", &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "VALID: "))
}
