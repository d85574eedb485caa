package workload

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// protobufWorkload unmarshals a wire-encoded message into a fresh dynamic
// message on every Parse. The document on disk is the message in JSON form;
// it is converted to wire bytes once.
type protobufWorkload struct {
	desc protoreflect.MessageDescriptor
	wire []byte
}

func newProtobufWorkload(data []byte, opt Options) (*protobufWorkload, error) {
	if strings.TrimSpace(opt.ProtoFile) == "" {
		return nil, errors.New("protobuf format requires a proto file")
	}
	if strings.TrimSpace(opt.ProtoMessage) == "" {
		return nil, errors.New("protobuf format requires a message name")
	}

	md, err := loadMessageDescriptor(opt.ProtoFile, opt.ProtoMessage, opt.ImportPaths)
	if err != nil {
		return nil, err
	}

	msg := dynamicpb.NewMessage(md)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s from JSON: %w", opt.ProtoMessage, err)
	}
	wire, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", opt.ProtoMessage, err)
	}
	return &protobufWorkload{desc: md, wire: wire}, nil
}

func (w *protobufWorkload) Parse() error {
	return proto.Unmarshal(w.wire, dynamicpb.NewMessage(w.desc))
}

// WireSize returns the size of the encoded message.
func (w *protobufWorkload) WireSize() int {
	return len(w.wire)
}

func loadMessageDescriptor(protoFile, message string, importPaths []string) (protoreflect.MessageDescriptor, error) {
	dir := filepath.Dir(protoFile)
	parser := protoparse.Parser{
		ImportPaths:           append([]string{dir}, importPaths...),
		IncludeSourceCodeInfo: false,
	}
	fds, err := parser.ParseFiles(filepath.Base(protoFile))
	if err != nil {
		return nil, fmt.Errorf("parse proto file: %w", err)
	}
	if len(fds) == 0 {
		return nil, fmt.Errorf("no descriptors found in %s", protoFile)
	}

	md := fds[0].FindMessage(message)
	if md == nil {
		return nil, fmt.Errorf("message %q not found in %s", message, protoFile)
	}
	return md.UnwrapMessage(), nil
}
