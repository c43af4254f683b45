package rpc

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"strconv"

	"speccy/emu"
)

// Emu is the loop-control surface exposed over the wire.
type Emu interface {
	Do(cmd emu.Command)
	SetPause(pause bool)
	Stop()
}

type emuProxy struct {
	emu Emu
}

func (ep *emuProxy) Command(cmd int, _ *struct{}) error {
	c := emu.Command(cmd)
	if !c.Valid() {
		return fmt.Errorf("unknown command id %d", cmd)
	}
	ep.emu.Do(c)
	return nil
}

func (ep *emuProxy) SetPause(pause bool, _ *struct{}) error { ep.emu.SetPause(pause); return nil }
func (ep *emuProxy) Stop(_ *struct{}, _ *struct{}) error    { ep.emu.Stop(); return nil }

func (ep *emuProxy) IsReady(_ *struct{}, reply *bool) error {
	*reply = true
	return nil
}

type Server struct {
	io.Closer
}

func NewServer(port int, e Emu) (*Server, error) {
	proxy := &emuProxy{emu: e}
	if err := rpc.RegisterName("emu", proxy); err != nil {
		panic("failed to register RPC server: " + err.Error())
	}
	rpc.HandleHTTP()
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}

	modRPC.InfoZ("rpc server listening").Int("port", int64(port)).End()
	go http.Serve(l, nil)
	return &Server{Closer: l}, nil
}
