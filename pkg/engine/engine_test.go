package engine

import (
	"context"
	"maps"
	"testing"
	"testing/fstest"

	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersistence struct {
	global   map[string]string
	entities map[string]map[string]string
	saves    int
}

func (m *memPersistence) Load(ctx context.Context) (map[string]string, map[string]map[string]string, error) {
	return maps.Clone(m.global), maps.Clone(m.entities), nil
}

func (m *memPersistence) Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error {
	m.saves++
	m.global, m.entities = global, entities
	return nil
}

func file(lines ...string) *fstest.MapFile {
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	return &fstest.MapFile{Data: []byte(data)}
}

func testEngine(fx Effects, reg CommandRegistrar, p vars.Persistence) *Engine {
	return New(Config{
		Effects:     fx,
		Registrar:   reg,
		Persistence: p,
		Logger:      testLogger(),
	})
}

func TestEngine_LoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"b_sapa.ns":   file("saat pemain masuk:", `    kirim "B" ke pemain`),
		"a_sapa.ns":   file("saat pemain masuk:", `    kirim "A" ke pemain`),
		"kosong.ns":   file("   ", ""),
		"rusak.ns":    file("saat pemain menari:", `    kirim "x" ke pemain`),
		"catatan.txt": file("saat pemain masuk:", `    kirim "tidak dimuat" ke pemain`),
	}
	fx := newRecorder()
	eng := testEngine(fx, nil, nil)

	loaded, err := eng.LoadFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, []ScriptInfo{
		{Name: "a_sapa.ns", Handlers: 1},
		{Name: "b_sapa.ns", Handlers: 1},
	}, eng.Scripts())
	assert.NotEmpty(t, eng.Diagnostics("rusak.ns"))

	n := eng.Dispatch(context.Background(), script.TriggerJoin, NewContext(player("Ani")))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"send Ani: A", "send Ani: B"}, fx.lines(), "handlers run in load order")
}

func TestEngine_LoadReplacesScript(t *testing.T) {
	fx := newRecorder()
	eng := testEngine(fx, nil, nil)

	_, _, err := eng.Load("sapa.ns", []string{"saat pemain masuk:", `    kirim "lama" ke pemain`})
	require.NoError(t, err)
	_, _, err = eng.Load("sapa.ns", []string{"saat pemain masuk:", `    kirim "baru" ke pemain`})
	require.NoError(t, err)

	eng.Dispatch(context.Background(), script.TriggerJoin, NewContext(player("Ani")))
	assert.Equal(t, []string{"send Ani: baru"}, fx.lines())
}

func TestEngine_LoadRejectsEmptyScript(t *testing.T) {
	eng := testEngine(newRecorder(), nil, nil)
	_, _, err := eng.Load("sapa.ns", []string{"saat pemain masuk:", `    kirim "ada" ke pemain`})
	require.NoError(t, err)

	_, diags, err := eng.Load("sapa.ns", []string{"# hanya komentar"})
	require.Error(t, err)
	assert.Empty(t, diags)

	_, ok := eng.Script("sapa.ns")
	assert.True(t, ok, "failed load keeps the previous script")
}

func TestEngine_DispatchNoHandlers(t *testing.T) {
	eng := testEngine(newRecorder(), nil, nil)
	assert.Equal(t, 0, eng.Dispatch(context.Background(), script.TriggerQuit, nil))
}

func TestEngine_HandlerPanicIsolated(t *testing.T) {
	fx := panickingEffects{newRecorder()}
	eng := testEngine(fx, nil, nil)
	_, _, err := eng.Load("a.ns", []string{"saat pemain masuk:", `    umumkan "meledak"`})
	require.NoError(t, err)
	_, _, err = eng.Load("b.ns", []string{"saat pemain masuk:", `    kirim "aman" ke pemain`})
	require.NoError(t, err)

	n := eng.Dispatch(context.Background(), script.TriggerJoin, NewContext(player("Ani")))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"send Ani: aman"}, fx.lines())
}

func TestEngine_CommandsAndReload(t *testing.T) {
	fsys := fstest.MapFS{
		"perintah.ns": file(
			"perintah /sapa nama:",
			`    deskripsi: "Menyapa seseorang"`,
			"    aksi:",
			`        kirim "Hai {nama}" ke pemain`,
		),
	}
	fx := newRecorder()
	reg := &fakeRegistrar{}
	eng := testEngine(fx, reg, nil)

	_, err := eng.LoadFS(fsys)
	require.NoError(t, err)
	require.Contains(t, reg.commands, "sapa")
	require.Len(t, eng.Commands(), 1)
	assert.Equal(t, "Menyapa seseorang", eng.Commands()[0].Description)

	inv := &fakeInvoker{name: "Ani", entity: player("Ani")}
	require.NoError(t, reg.commands["sapa"](context.Background(), inv, []string{"Budi"}))
	assert.Equal(t, []string{"send Ani: Hai Budi"}, fx.lines())

	// the registered closure follows the current definition
	fsys["perintah.ns"] = file(
		"perintah /sapa nama:",
		"    aksi:",
		`        kirim "Halo {nama}" ke pemain`,
	)
	_, err = eng.Reload(context.Background())
	require.NoError(t, err)
	require.NoError(t, reg.commands["sapa"](context.Background(), inv, []string{"Citra"}))
	assert.Equal(t, "send Ani: Halo Citra", fx.lines()[1])
	assert.Equal(t, 1, reg.calls, "reload must not register the same name twice")

	delete(fsys, "perintah.ns")
	_, err = eng.Reload(context.Background())
	require.NoError(t, err)
	err = reg.commands["sapa"](context.Background(), inv, nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, eng.Scripts())
}

func TestEngine_ExecuteCommandNormalizesName(t *testing.T) {
	fx := newRecorder()
	eng := testEngine(fx, nil, nil)
	_, _, err := eng.Load("c.ns", []string{"perintah /Ping:", "    aksi:", `        umumkan "pong"`})
	require.NoError(t, err)

	require.NoError(t, eng.ExecuteCommand(context.Background(), "/PING", &fakeInvoker{name: "CONSOLE"}, nil))
	assert.Equal(t, []string{"broadcast pong"}, fx.lines())

	err = eng.ExecuteCommand(context.Background(), "pong", &fakeInvoker{name: "CONSOLE"}, nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestEngine_RegistrarFailureRetried(t *testing.T) {
	reg := &fakeRegistrar{failFor: "sapa"}
	eng := testEngine(newRecorder(), reg, nil)
	cmd := []string{"perintah /sapa:", "    aksi:", `        umumkan "hai"`}

	_, _, err := eng.Load("c.ns", cmd)
	require.NoError(t, err)
	assert.NotContains(t, reg.commands, "sapa")

	reg.failFor = ""
	_, _, err = eng.Load("c.ns", cmd)
	require.NoError(t, err)
	assert.Contains(t, reg.commands, "sapa")
	assert.Equal(t, 2, reg.calls)
}

func TestEngine_VariablePersistence(t *testing.T) {
	p := &memPersistence{
		global:   map[string]string{"motd": "Halo"},
		entities: map[string]map[string]string{"ani": {"koin": "2.0"}},
	}
	eng := testEngine(newRecorder(), nil, p)
	require.NoError(t, eng.LoadVariables(context.Background()))

	_, _, err := eng.Load("koin.ns", []string{"saat pemain masuk:", "    tambah 3 ke variabel {koin.%pemain%}"})
	require.NoError(t, err)
	eng.Dispatch(context.Background(), script.TriggerJoin, NewContext(player("Ani")))

	require.NoError(t, eng.Close(context.Background()))
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, "Halo", p.global["motd"])
	assert.Equal(t, "5.0", p.entities["ani"]["koin"])
}

func TestEngine_NoPersistence(t *testing.T) {
	eng := testEngine(newRecorder(), nil, nil)
	assert.NoError(t, eng.LoadVariables(context.Background()))
	assert.NoError(t, eng.SaveVariables(context.Background()))
}

func TestEngine_Info(t *testing.T) {
	eng := testEngine(newRecorder(), nil, nil)
	_, _, err := eng.Load("a.ns", []string{
		"saat pemain masuk:",
		"    tambah 1 ke variabel {masuk}",
		"saat pemain keluar:",
		"    berhenti",
		"perintah /x:",
		"    aksi:",
		"        berhenti",
	})
	require.NoError(t, err)

	eng.Dispatch(context.Background(), script.TriggerJoin, nil)
	eng.Dispatch(context.Background(), script.TriggerJoin, nil)
	eng.Dispatch(context.Background(), script.TriggerChat, nil)

	info := eng.Info()
	assert.Equal(t, 1, info.Scripts)
	assert.Equal(t, 1, info.Commands)
	assert.Equal(t, 1, info.Variables)
	assert.Equal(t, map[script.Trigger]int{script.TriggerJoin: 1, script.TriggerQuit: 1}, info.Handlers)
	assert.Equal(t, map[script.Trigger]int{script.TriggerJoin: 2, script.TriggerChat: 1}, info.Dispatches)
}
