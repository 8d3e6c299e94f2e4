package rpc

import "time"

func nowMillis() int64 { return time.Now().UnixMilli() }
func nowTicks() int64  { return time.Now().UnixNano() }
func nowUnix() int64   { return time.Now().Unix() }
