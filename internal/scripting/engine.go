package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const relevanceFunc = "is_relevant"

// Engine wraps a single gopher-lua VM that scripts relevancy decisions.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads path, which is either a .lua file
// or a directory of them.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("chebyshev", vm.NewFunction(luaChebyshev))

	e := &Engine{vm: vm, log: log}

	info, err := os.Stat(path)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.loadFile(path)
	}
	if err != nil {
		vm.Close()
		return nil, err
	}
	if e.vm.GetGlobal(relevanceFunc) == lua.LNil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %s does not define %s", path, relevanceFunc)
	}
	return e, nil
}

// NewEngineString is NewEngine for a script held in memory.
func NewEngineString(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("chebyshev", vm.NewFunction(luaChebyshev))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// chebyshev(dx, dy) returns max(|dx|, |dy|).
func luaChebyshev(L *lua.LState) int {
	dx := L.CheckInt(1)
	dy := L.CheckInt(2)
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	L.Push(lua.LNumber(max(dx, dy)))
	return 1
}

// Relevant calls the Lua is_relevant(dx, dy, radius) function. Script errors
// fall back to a square of the given radius.
func (e *Engine) Relevant(dx, dy, radius int32) bool {
	fallback := func() bool {
		return dx <= radius && dx >= -radius && dy <= radius && dy >= -radius
	}
	fn := e.vm.GetGlobal(relevanceFunc)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", relevanceFunc))
		return fallback()
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(dx), lua.LNumber(dy), lua.LNumber(radius)); err != nil {
		e.log.Error("lua call error", zap.String("func", relevanceFunc), zap.Error(err))
		return fallback()
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return lua.LVAsBool(result)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
