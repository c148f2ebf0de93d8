package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/joshp123/godaikin/internal/rpc"
)

// invoke calls a BridgeService method with string request fields.
func invoke(ctx context.Context, conn *grpc.ClientConn, method string, fields map[string]string) *dynamicpb.Message {
	fd, err := rpc.Schema()
	if err != nil {
		fatal("schema", err)
	}
	md := fd.Services().ByName("BridgeService").Methods().ByName(protoreflect.Name(method))
	if md == nil {
		fatal("schema", fmt.Errorf("no method %s", method))
	}
	req := dynamicpb.NewMessage(md.Input())
	for name, value := range fields {
		req.Set(md.Input().Fields().ByName(protoreflect.Name(name)), protoreflect.ValueOfString(value))
	}
	resp := dynamicpb.NewMessage(md.Output())
	if err := conn.Invoke(ctx, "/"+rpc.ServiceName+"/"+method, req, resp); err != nil {
		fatal(method, err)
	}
	return resp
}

func get(msg protoreflect.Message, name string) protoreflect.Value {
	return msg.Get(msg.Descriptor().Fields().ByName(protoreflect.Name(name)))
}

func unitsCmd(ctx context.Context, conn *grpc.ClientConn, out outputMode) {
	resp := invoke(ctx, conn, "ListUnits", nil)
	if out.json {
		out.printProto(resp)
		return
	}
	rows := [][]string{{"UNIT", "ID", "MODE", "SET", "ROOM", "FAN", "POWER", "ENERGY", "ONLINE"}}
	units := get(resp, "units").List()
	for i := 0; i < units.Len(); i++ {
		u := units.Get(i).Message()
		rows = append(rows, []string{
			get(u, "name").String(),
			get(u, "unit_id").String(),
			get(u, "mode").String(),
			fmt.Sprintf("%d°C", get(u, "temperature").Int()),
			fmt.Sprintf("%d°C", get(u, "current_temperature").Int()),
			get(u, "fan_mode").String(),
			fmt.Sprintf("%dW", get(u, "power_watts").Int()),
			fmt.Sprintf("%.2fkWh", get(u, "energy_kwh").Float()),
			strconv.FormatBool(get(u, "connected").Bool()),
		})
	}
	out.table(rows)
}

func unitCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) < 1 {
		fatal("unit", fmt.Errorf("usage: godaikin-cli unit <name|id>"))
	}
	id := lookupUnit(ctx, conn, args[0])
	resp := invoke(ctx, conn, "GetUnit", map[string]string{"unit_id": id})
	if out.json {
		out.printProto(resp)
		return
	}
	rows := [][]string{}
	fields := resp.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		f := fields.Get(i)
		rows = append(rows, []string{string(f.Name()), resp.Get(f).String()})
	}
	out.table(rows)
}

func statusCmd(ctx context.Context, conn *grpc.ClientConn, out outputMode) {
	resp := invoke(ctx, conn, "GetBridgeStatus", nil)
	if out.json {
		out.printProto(resp)
		return
	}
	lastPoll := "never"
	if ts := get(resp, "last_poll_unix").Int(); ts > 0 {
		lastPoll = time.Unix(ts, 0).Format(time.RFC3339)
	}
	fmt.Printf("state: %s\n", get(resp, "state").String())
	fmt.Printf("units: %d\n", get(resp, "units").Int())
	fmt.Printf("last poll: %s\n", lastPoll)
}

func setCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) < 3 {
		fatal("set", fmt.Errorf("usage: godaikin-cli set <name|id> <key> <value>"))
	}
	id := lookupUnit(ctx, conn, args[0])
	resp := invoke(ctx, conn, "SendCommand", map[string]string{"unit_id": id, "key": args[1], "value": args[2]})
	if out.json {
		out.printProto(resp)
		return
	}
	if !get(resp, "accepted").Bool() {
		fmt.Fprintln(os.Stderr, "not accepted")
		os.Exit(1)
	}
	fmt.Printf("ok: %s %s -> %s\n", id, args[1], args[2])
}

func lookupUnit(ctx context.Context, conn *grpc.ClientConn, input string) string {
	resp := invoke(ctx, conn, "ListUnits", nil)
	names := map[string]string{}
	units := get(resp, "units").List()
	for i := 0; i < units.Len(); i++ {
		u := units.Get(i).Message()
		names[get(u, "unit_id").String()] = get(u, "name").String()
	}
	id, err := resolveUnit(input, names)
	if err != nil {
		fatal("resolve", err)
	}
	return id
}
