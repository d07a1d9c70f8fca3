// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package amcp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// maxDataLines bounds a 200 data block.
const maxDataLines = 10000

// Response is a parsed status reply.
type Response struct {
	Code   int
	Verb   string
	Status string
	Data   []string
}

// IsSuccess reports a 2xx status.
func (r Response) IsSuccess() bool { return r.Code >= 200 && r.Code < 300 }

// Message returns the data when present, else the status text.
func (r Response) Message() string {
	if len(r.Data) > 0 {
		return strings.Join(r.Data, "\n")
	}
	return r.Status
}

// ReadResponse reads one reply. 200 carries a data block terminated by an
// empty line, 201 exactly one data line, everything else no data.
func ReadResponse(rd *bufio.Reader) (Response, error) {
	line, err := readLine(rd)
	if err != nil {
		return Response{}, err
	}
	resp, err := parseStatus(line)
	if err != nil {
		return Response{}, err
	}
	switch resp.Code {
	case 200:
		for i := 0; ; i++ {
			if i >= maxDataLines {
				return resp, fmt.Errorf("%w: data block exceeds %d lines", ErrProtocol, maxDataLines)
			}
			l, err := readLine(rd)
			if err != nil {
				return resp, err
			}
			if l == "" {
				break
			}
			resp.Data = append(resp.Data, l)
		}
	case 201:
		l, err := readLine(rd)
		if err != nil {
			return resp, err
		}
		resp.Data = []string{l}
	}
	return resp, nil
}

// parseStatus splits "<code> <verb> <status text>".
func parseStatus(line string) (Response, error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields[0]) != 3 {
		return Response{}, fmt.Errorf("%w: status line %q", ErrProtocol, line)
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil || code < 100 || code > 599 {
		return Response{}, fmt.Errorf("%w: status line %q", ErrProtocol, line)
	}
	resp := Response{Code: code}
	if len(fields) > 1 {
		resp.Verb = fields[1]
	}
	if len(fields) > 2 {
		resp.Status = fields[2]
	}
	return resp, nil
}

func readLine(rd *bufio.Reader) (string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
