package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// referenceSchema builds the simulator schema as a real protobuf descriptor so
// tests can compare against the reference protobuf runtime.
func referenceSchema(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()

	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	field := func(name string, num int32, label *descriptorpb.FieldDescriptorProto_Label, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
		f := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(num),
			Label:    label,
			Type:     typ.Enum(),
		}
		if typeName != "" {
			f.TypeName = proto.String(typeName)
		}
		return f
	}
	inOneof := func(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
		f.OneofIndex = proto.Int32(0)
		return f
	}

	msg := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("skyrts_test.proto"),
		Package: proto.String("skyrts"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name:  proto.String("ActionList"),
				Field: []*descriptorpb.FieldDescriptorProto{field("actions", 1, repeated, msg, ".skyrts.UnitAction")},
			},
			{
				Name: proto.String("UnitAction"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("unit_id", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_UINT64, ""),
					inOneof(field("move_to", 2, optional, msg, ".skyrts.MoveTo")),
					inOneof(field("attack", 3, optional, msg, ".skyrts.AttackUnit")),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("action")}},
			},
			{
				Name:  proto.String("MoveTo"),
				Field: []*descriptorpb.FieldDescriptorProto{field("pos", 1, optional, msg, ".skyrts.Pos")},
			},
			{
				Name: proto.String("Pos"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("x", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
					field("y", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
				},
			},
			{
				Name:  proto.String("AttackUnit"),
				Field: []*descriptorpb.FieldDescriptorProto{field("target_id", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_UINT64, "")},
			},
			{
				Name: proto.String("EnvRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					inOneof(field("reset_scenario", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, "")),
					inOneof(field("action", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_BYTES, "")),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("kind")}},
			},
			{
				Name: proto.String("EnvState"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("features", 1, repeated, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
					field("shape", 2, repeated, descriptorpb.FieldDescriptorProto_TYPE_UINT32, ""),
					field("typed_reward", 3, repeated, msg, ".skyrts.EnvState.TypedRewardEntry"),
					field("reward", 4, optional, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
					field("terminal", 5, optional, descriptorpb.FieldDescriptorProto_TYPE_BOOL, ""),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("TypedRewardEntry"),
						Field: []*descriptorpb.FieldDescriptorProto{
							field("key", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
							field("value", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
						},
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
					},
				},
			},
		},
	}

	fd, err := protodesc.NewFile(file, new(protoregistry.Files))
	require.NoError(t, err)
	return fd
}
