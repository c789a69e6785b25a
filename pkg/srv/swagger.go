/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

const swaggerJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "go-encoder API",
    "description": "Pins of the quadrature encoder channels of a board",
    "version": "1.0.0"
  },
  "basePath": "/api",
  "schemes": ["http"],
  "consumes": ["application/json"],
  "produces": ["application/json"],
  "paths": {
    "/info": {
      "get": {
        "summary": "Encoder module and control loop information",
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/Info"}}
        }
      }
    },
    "/channels": {
      "get": {
        "summary": "Snapshots of all channels after the last cycle",
        "responses": {
          "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/ChannelSnapshot"}}}
        }
      }
    },
    "/channels/{ch}": {
      "parameters": [
        {"name": "ch", "in": "path", "required": true, "type": "integer"}
      ],
      "get": {
        "summary": "Snapshot of one channel after the last cycle",
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChannelSnapshot"}},
          "404": {"description": "Channel not found"}
        }
      },
      "post": {
        "summary": "Write the input pins of a channel before the next write cycle",
        "parameters": [
          {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PinWrite"}}
        ],
        "responses": {
          "200": {"description": "Applied", "schema": {"$ref": "#/definitions/ChannelSnapshot"}},
          "400": {"description": "Bad request"},
          "404": {"description": "Channel not found"},
          "503": {"description": "Control loop stopped"}
        }
      }
    },
    "/history/{ch}": {
      "parameters": [
        {"name": "ch", "in": "path", "required": true, "type": "integer"},
        {"name": "limit", "in": "query", "type": "integer"}
      ],
      "get": {
        "summary": "Persisted snapshots of a channel, newest first",
        "responses": {
          "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Record"}}},
          "404": {"description": "Channel not found"}
        }
      }
    },
    "/ws": {
      "get": {
        "summary": "Websocket stream of the snapshots of every cycle",
        "responses": {
          "101": {"description": "Switching protocols"}
        }
      }
    }
  },
  "definitions": {
    "Info": {
      "type": "object",
      "properties": {
        "module_id": {"type": "integer"},
        "module_name": {"type": "string"},
        "num_channels": {"type": "integer"},
        "period_ns": {"type": "integer"},
        "cycle": {"type": "integer"}
      }
    },
    "ChannelSnapshot": {
      "type": "object",
      "properties": {
        "channel": {"type": "integer"},
        "raw_counts": {"type": "integer", "format": "int32"},
        "counts": {"type": "integer", "format": "int32"},
        "position": {"type": "number"},
        "velocity": {"type": "number"},
        "velocity_rpm": {"type": "number"},
        "overflow_occurred": {"type": "boolean"},
        "index_pulse": {"type": "boolean"},
        "index_enable": {"type": "boolean"},
        "reset": {"type": "boolean"},
        "position_scale": {"type": "number"},
        "x4_mode": {"type": "boolean"}
      }
    },
    "Record": {
      "allOf": [
        {"$ref": "#/definitions/ChannelSnapshot"},
        {"type": "object", "properties": {"cycle": {"type": "integer"}}}
      ]
    },
    "PinWrite": {
      "type": "object",
      "properties": {
        "reset": {"type": "boolean"},
        "index_enable": {"type": "boolean"},
        "position_scale": {"type": "number"},
        "x4_mode": {"type": "boolean"}
      }
    }
  }
}`
