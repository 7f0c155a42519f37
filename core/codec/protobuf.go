package codec

import (
	"fmt"

	"github.com/searchktools/fastry/core/router"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufCodec encodes the route table as a google.protobuf.Struct of the
// form {"routes": [{"pattern": ..., "handler_id": ...}]}
type ProtobufCodec struct{}

func (c *ProtobufCodec) Encode(routes []router.Route) ([]byte, error) {
	list := make([]*structpb.Value, 0, len(routes))
	for _, r := range routes {
		list = append(list, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"pattern":    structpb.NewStringValue(r.Pattern),
				"handler_id": structpb.NewStringValue(r.HandlerID),
			},
		}))
	}

	msg := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"routes": structpb.NewListValue(&structpb.ListValue{Values: list}),
		},
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func (c *ProtobufCodec) Decode(data []byte) ([]router.Route, error) {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, err
	}

	list := msg.GetFields()["routes"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("protobuf route table: missing routes list")
	}

	routes := make([]router.Route, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("protobuf route table: entry %d is not a struct", i)
		}
		routes = append(routes, router.Route{
			Pattern:   fields["pattern"].GetStringValue(),
			HandlerID: fields["handler_id"].GetStringValue(),
		})
	}
	return routes, validate(routes)
}

func (c *ProtobufCodec) Name() string {
	return NameProtobuf
}

func (c *ProtobufCodec) ContentType() string {
	return "application/x-protobuf"
}
