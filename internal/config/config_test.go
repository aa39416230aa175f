package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/actionengine/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeFile(t, "engine.yml", `
engine:
  log:
    level: "debug"
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
  pipeline:
    name: "edge"
    workers: 4
    dispatch: "hashring"
    digest_ttl: "30s"
  program: "program.yml"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if !cfg.Log.Console {
		t.Errorf("Expected console logging by default")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("Unexpected metrics config %+v", cfg.Metrics)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected default metrics path, got %s", cfg.Metrics.Path)
	}
	if cfg.Pipeline.Name != "edge" || cfg.Pipeline.Workers != 4 {
		t.Errorf("Unexpected pipeline config %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Dispatch != DispatchHashRing {
		t.Errorf("Expected hashring dispatch, got %s", cfg.Pipeline.Dispatch)
	}
	if cfg.Pipeline.DigestTTL != 30*time.Second {
		t.Errorf("Expected digest ttl 30s, got %v", cfg.Pipeline.DigestTTL)
	}
	if cfg.Pipeline.QueueSize != 1024 || cfg.Pipeline.MaxRecirculations != 4 {
		t.Errorf("Expected pipeline defaults, got %+v", cfg.Pipeline)
	}
	if want := filepath.Join(filepath.Dir(configPath), "program.yml"); cfg.Program != want {
		t.Errorf("Expected program path %s, got %s", want, cfg.Program)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	configPath := writeFile(t, "engine.yml", `
engine:
  log:
    level: "info"
`)
	t.Setenv("ENGINE_LOG_LEVEL", "trace")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Log.Level != "trace" {
		t.Errorf("Expected env override trace, got %s", cfg.Log.Level)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	configPath := writeFile(t, "engine.yml", `
engine:
  log:
    level: "loud"
`)
	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid log level, got nil")
	}
}

func TestLoadInvalidDispatch(t *testing.T) {
	configPath := writeFile(t, "engine.yml", `
engine:
  pipeline:
    dispatch: "random"
`)
	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid dispatch, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestPipelineDefaults(t *testing.T) {
	pc := PipelineConfig{}
	if err := pc.ValidateAndApplyDefaults(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pc.Workers != 1 || pc.Dispatch != DispatchFlowHash || pc.Name != "default" {
		t.Errorf("Unexpected defaults %+v", pc)
	}

	pc = PipelineConfig{MaxRecirculations: -1}
	if err := pc.ValidateAndApplyDefaults(); err == nil {
		t.Error("Expected error for negative max_recirculations")
	}
}

func TestLoadSourceAndSink(t *testing.T) {
	configPath := writeFile(t, "engine.yml", `
engine:
  source:
    type: "afpacket"
    device: "eth0"
    fanout_id: 7
    port: 3
    filter: |
      { 0x6, 0, 0, 0x00040000 },
  sink:
    type: "file"
    path: "/tmp/out.pcap"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Source.Type != SourceAFPacket || cfg.Source.Device != "eth0" || cfg.Source.FanoutID != 7 {
		t.Errorf("Unexpected source config %+v", cfg.Source)
	}
	if cfg.Source.Port != 3 || cfg.Source.SnapLen != 65535 || cfg.Source.TimeoutMs != 100 {
		t.Errorf("Unexpected source defaults %+v", cfg.Source)
	}
	if cfg.Source.Filter == "" {
		t.Error("Expected filter program to be loaded")
	}
	if cfg.Sink.Type != SinkFile || cfg.Sink.Path != "/tmp/out.pcap" || cfg.Sink.SnapLen != 65535 {
		t.Errorf("Unexpected sink config %+v", cfg.Sink)
	}
}

func TestSourceSinkValidation(t *testing.T) {
	src := SourceConfig{}
	if err := src.ValidateAndApplyDefaults(); err != nil || src.Type != SourceFile {
		t.Errorf("Expected file source by default, got %+v (err %v)", src, err)
	}
	src = SourceConfig{Type: SourceAFPacket}
	if err := src.ValidateAndApplyDefaults(); err == nil {
		t.Error("Expected error for afpacket source without device")
	}
	src = SourceConfig{Type: "tap"}
	if err := src.ValidateAndApplyDefaults(); err == nil {
		t.Error("Expected error for unknown source type")
	}

	sink := SinkConfig{}
	if err := sink.ValidateAndApplyDefaults(); err != nil || sink.Type != SinkConsole {
		t.Errorf("Expected console sink by default, got %+v (err %v)", sink, err)
	}
	sink = SinkConfig{Type: "kafka"}
	if err := sink.ValidateAndApplyDefaults(); err == nil {
		t.Error("Expected error for unknown sink type")
	}
}

const sampleProgram = `
header_types:
  - name: standard_metadata_t
    fields:
      - {name: egress_spec, width: 9}
      - {name: clone_spec, width: 32}
  - name: ethernet_t
    fields:
      - {name: dstAddr, width: 48}
      - {name: srcAddr, width: 48}
      - {name: etherType, width: 16}
headers:
  - {name: standard_metadata, type: standard_metadata_t, metadata: true}
  - {name: ethernet, type: ethernet_t}
counters:
  - {name: port_counter, size: 512}
meters:
  - name: port_meter
    type: packets
    size: 16
    rates:
      - {info_rate: 0.001, burst_size: 10}
      - {info_rate: 0.002, burst_size: 20}
registers:
  - {name: last_seen, size: 16, width: 48}
calculations:
  - {name: flow_hash, algorithm: flow}
  - {name: mac_hash, algorithm: crc16, fields: [ethernet.srcAddr]}
externs:
  - name: inc0
    type: ExternIncrease
    attributes:
      attribute_example: "0x10"
actions:
  - name: count_port
    calls:
      - primitive: count
        args: ["counter:port_counter", "0"]
  - name: drop_all
    calls:
      - primitive: drop
ingress: [count_port]
egress: [drop_all]
`

func TestParseProgram(t *testing.T) {
	pc, err := ParseProgram([]byte(sampleProgram))
	if err != nil {
		t.Fatalf("Failed to parse program: %v", err)
	}
	if len(pc.HeaderTypes) != 2 || len(pc.HeaderTypes[1].Fields) != 3 {
		t.Errorf("Unexpected header types %+v", pc.HeaderTypes)
	}
	if !pc.Headers[0].Metadata || pc.Headers[1].Metadata {
		t.Errorf("Unexpected metadata flags %+v", pc.Headers)
	}
	if pc.Meters[0].Rates[1].BurstSize != 20 {
		t.Errorf("Unexpected meter rates %+v", pc.Meters[0].Rates)
	}
	if pc.Registers[0].Width != 48 {
		t.Errorf("Expected register width 48, got %d", pc.Registers[0].Width)
	}
	if got := pc.Calculations[1].Fields; len(got) != 1 || got[0] != "ethernet.srcAddr" {
		t.Errorf("Unexpected calculation fields %v", got)
	}
	if len(pc.Actions[0].Calls[0].Args) != 2 {
		t.Errorf("Unexpected call args %v", pc.Actions[0].Calls[0].Args)
	}
	if len(pc.Ingress) != 1 || pc.Egress[0] != "drop_all" {
		t.Errorf("Unexpected stages %v %v", pc.Ingress, pc.Egress)
	}

	attrs, err := pc.Externs[0].AttributeValues()
	if err != nil {
		t.Fatalf("Failed to decode attributes: %v", err)
	}
	if attrs["attribute_example"] != 16 {
		t.Errorf("Expected attribute_example 16, got %d", attrs["attribute_example"])
	}
}

func TestLoadProgram(t *testing.T) {
	path := writeFile(t, "program.yml", sampleProgram)
	if _, err := LoadProgram(path); err != nil {
		t.Fatalf("Failed to load program: %v", err)
	}
	if _, err := LoadProgram(filepath.Join(t.TempDir(), "none.yml")); err == nil {
		t.Error("Expected error for missing program file")
	}
}

func TestParseProgramInvalid(t *testing.T) {
	cases := map[string]string{
		"counter size": "counters:\n  - {name: c, size: 0}\n",
		"header type":  "headers:\n  - {name: h}\n",
		"empty fields": "header_types:\n  - {name: t}\n",
		"meter rates":  "meters:\n  - name: m\n    size: 1\n    rates: [{info_rate: 1}, {info_rate: 2}, {info_rate: 3}]\n",
		"call":         "actions:\n  - name: a\n    calls:\n      - args: [\"1\"]\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProgram([]byte(data))
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}

	if _, err := ParseProgram([]byte("actions: [")); err == nil {
		t.Error("Expected YAML syntax error")
	}
}

func TestAttributeValuesInvalid(t *testing.T) {
	e := ExternConfig{Name: "x", Attributes: map[string]any{"a": "not-a-number"}}
	if _, err := e.AttributeValues(); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid, got %v", err)
	}
}
